package gpu

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
)

func BenchmarkManager_Run(b *testing.B) {
	sizes := []int{32, 64, 128}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			dims := Dimensions{Width: size, LocalSize: 32}
			ref := &referenceRunner{dims: dims, millis: 1}
			manager, err := NewManager(dims, ref, newFakePlatforms(1, 2), ref, zap.NewNop())
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				manager.Run()
			}

			flops := dims.FLOPs() * 4 * float64(b.N)
			b.ReportMetric(flops/b.Elapsed().Seconds()/1e9, "GFLOPS")
		})
	}
}

func BenchmarkChecksum(b *testing.B) {
	out := NewMatrices(DefaultDimensions(), 1).A
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Checksum(out)
	}
}
