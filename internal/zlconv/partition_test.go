package zlconv

import "testing"

func TestBuildPartitionPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		blockSize   int
		irLen       int
		wantN       int
		wantWindows []int
	}{
		{
			name:        "block16_len4096",
			blockSize:   16,
			irLen:       4096,
			wantN:       64,
			wantWindows: []int{128, 64, 64, 128, 128, 256, 256, 512, 512, 1024, 1024, 2048, 2048},
		},
		{
			name:        "block32_fits_in_head",
			blockSize:   32,
			irLen:       10,
			wantN:       128,
			wantWindows: []int{256},
		},
		{
			name:        "tiny_block_floors_to_32",
			blockSize:   1,
			irLen:       40,
			wantN:       32,
			wantWindows: []int{64, 32},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plan := buildPartitionPlan(tt.blockSize, tt.irLen)

			if plan.N != tt.wantN {
				t.Errorf("N = %d, want %d", plan.N, tt.wantN)
			}
			if plan.A != 2*tt.wantN {
				t.Errorf("A = %d, want %d", plan.A, 2*tt.wantN)
			}
			if len(plan.Partitions) != len(tt.wantWindows) {
				t.Fatalf("got %d partitions, want %d", len(plan.Partitions), len(tt.wantWindows))
			}

			sum := 0
			for i, p := range plan.Partitions {
				if p.WindowSize != tt.wantWindows[i] {
					t.Errorf("partition %d: window = %d, want %d", i, p.WindowSize, tt.wantWindows[i])
				}
				if p.WindowSize != 2*p.HalfSize() {
					t.Errorf("partition %d: window %d != 2*half %d", i, p.WindowSize, p.HalfSize())
				}
				if p.Direct != (i == 0) {
					t.Errorf("partition %d: direct = %v, want %v", i, p.Direct, i == 0)
				}
				sum += p.HalfSize()
			}
			if sum < tt.irLen {
				t.Errorf("half-size sum %d does not cover irLen %d", sum, tt.irLen)
			}
		})
	}
}

func TestWindowSizeSequence(t *testing.T) {
	t.Parallel()

	const n = 64
	want := []int{128, 64, 64, 128, 128, 256, 256, 512, 512}
	for i, w := range want {
		if got := windowSize(i, n); got != w {
			t.Errorf("windowSize(%d, %d) = %d, want %d", i, n, got, w)
		}
	}
}
