package services_benchmark

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"coassign/pkg/api/matchingv1"
	"coassign/pkg/domain"
	solversvc "coassign/services/solver-svc"
)

const bufSize = 1024 * 1024

var (
	listener *bufconn.Listener
	client   matchingv1.MatchingServiceClient
	direct   matchingv1.MatchingServiceServer
)

// init initializes an in-memory gRPC server for benchmarks
func init() {
	listener = bufconn.Listen(bufSize)

	server := grpc.NewServer()
	direct = solversvc.NewBenchmarkServer()
	matchingv1.RegisterMatchingServiceServer(server, direct)

	go func() {
		if err := server.Serve(listener); err != nil {
			log.Fatalf("Server exited with error: %v", err)
		}
	}()

	conn, err := grpc.NewClient(
		"passthrough://bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return listener.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(matchingv1.CallOptions()...),
	)
	if err != nil {
		log.Fatalf("Failed to dial bufnet: %v", err)
	}

	client = matchingv1.NewMatchingServiceClient(conn)
}

// =============================================================================
// GRAPH GENERATORS
// =============================================================================

// generateRequest creates a side x side request with the given density.
// Multiplicities are in [1, maxMult), weights in [1, maxWeight).
func generateRequest(side int, density float64, maxMult, maxWeight int64) *matchingv1.SolveRequest {
	r := rand.New(rand.NewSource(42))

	req := &matchingv1.SolveRequest{
		LSize:               side,
		RSize:               side,
		LeftMultiplicities:  make([]int64, side),
		RightMultiplicities: make([]int64, side),
	}
	for i := 0; i < side; i++ {
		req.LeftMultiplicities[i] = 1 + r.Int63n(maxMult-1)
		req.RightMultiplicities[i] = 1 + r.Int63n(maxMult-1)
	}
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			if r.Float64() < density {
				req.Edges = append(req.Edges, matchingv1.Edge{
					Left:   i,
					Right:  j,
					Weight: 1 + r.Int63n(maxWeight-1),
				})
			}
		}
	}
	return req
}

// generateAssignmentRequest creates a dense one-to-one assignment problem
func generateAssignmentRequest(n int) *matchingv1.SolveRequest {
	req := generateRequest(n, 1.0, 2, 10_000)
	for i := 0; i < n; i++ {
		req.LeftMultiplicities[i] = 1
		req.RightMultiplicities[i] = 1
	}
	return req
}

// generateUnbalancedRequest creates a request with a small left side
func generateUnbalancedRequest(left, right int) *matchingv1.SolveRequest {
	r := rand.New(rand.NewSource(7))

	req := &matchingv1.SolveRequest{LSize: left, RSize: right}
	for i := 0; i < left; i++ {
		req.LeftMultiplicities = append(req.LeftMultiplicities, int64(right/left+1))
	}
	for j := 0; j < right; j++ {
		req.RightMultiplicities = append(req.RightMultiplicities, 1)
	}
	for i := 0; i < left; i++ {
		for j := 0; j < right; j++ {
			req.Edges = append(req.Edges, matchingv1.Edge{Left: i, Right: j, Weight: 1 + r.Int63n(100)})
		}
	}
	return req
}

func exampleRequest() *matchingv1.SolveRequest {
	g := domain.Example()
	l, r := g.OriginalSizes()
	req := &matchingv1.SolveRequest{
		LSize:               l,
		RSize:               r,
		LeftMultiplicities:  g.LeftMultiplicities(),
		RightMultiplicities: g.RightMultiplicities(),
	}
	for _, e := range g.Edges() {
		req.Edges = append(req.Edges, matchingv1.Edge(e))
	}
	return req
}

func runSolve(b *testing.B, call func(context.Context, *matchingv1.SolveRequest) (*matchingv1.SolveResponse, error), req *matchingv1.SolveRequest) {
	b.Helper()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := call(ctx, req)
		if err != nil {
			b.Fatal(err)
		}
		if i == 0 {
			b.ReportMetric(float64(len(resp.Phases)), "phases")
		}
	}
}

func grpcSolve(ctx context.Context, req *matchingv1.SolveRequest) (*matchingv1.SolveResponse, error) {
	return client.Solve(ctx, req)
}

// =============================================================================
// BENCHMARKS
// =============================================================================

func BenchmarkSolve_Example(b *testing.B) {
	runSolve(b, grpcSolve, exampleRequest())
}

func BenchmarkSolve_BySize(b *testing.B) {
	sizes := []int{10, 50, 100, 200}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("side_%d", size), func(b *testing.B) {
			runSolve(b, grpcSolve, generateRequest(size, 0.3, 5, 1000))
		})
	}
}

func BenchmarkSolve_ByDensity(b *testing.B) {
	densities := []float64{0.05, 0.1, 0.5, 1.0}

	for _, d := range densities {
		b.Run(fmt.Sprintf("density_%.2f", d), func(b *testing.B) {
			runSolve(b, grpcSolve, generateRequest(100, d, 5, 1000))
		})
	}
}

func BenchmarkSolve_ByWeightRange(b *testing.B) {
	weights := []int64{10, 1_000, 100_000, 10_000_000}

	for _, w := range weights {
		b.Run(fmt.Sprintf("max_weight_%d", w), func(b *testing.B) {
			runSolve(b, grpcSolve, generateRequest(100, 0.3, 5, w))
		})
	}
}

func BenchmarkSolve_ByScalingFactor(b *testing.B) {
	factors := []int64{2, 4, 8, 16, 64}

	for _, sf := range factors {
		b.Run(fmt.Sprintf("sf_%d", sf), func(b *testing.B) {
			req := generateRequest(100, 0.3, 5, 100_000)
			req.Options = &matchingv1.SolveOptions{ScalingFactor: sf}
			runSolve(b, grpcSolve, req)
		})
	}
}

func BenchmarkSolve_GlobalRelabelThrottle(b *testing.B) {
	factors := []float64{0, 0.3, 0.6, 2.0}

	for _, f := range factors {
		b.Run(fmt.Sprintf("factor_%.1f", f), func(b *testing.B) {
			factor := f
			req := generateRequest(150, 0.3, 5, 10_000)
			req.Options = &matchingv1.SolveOptions{GlobalRelabelFreqFactor: &factor}
			runSolve(b, grpcSolve, req)
		})
	}
}

func BenchmarkSolve_WithoutVerification(b *testing.B) {
	noVerify := false
	req := generateRequest(150, 0.3, 5, 10_000)
	req.Options = &matchingv1.SolveOptions{Verify: &noVerify}
	runSolve(b, grpcSolve, req)
}

func BenchmarkSolve_Assignment(b *testing.B) {
	sizes := []int{20, 50, 100}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("n_%d", size), func(b *testing.B) {
			runSolve(b, grpcSolve, generateAssignmentRequest(size))
		})
	}
}

func BenchmarkSolve_Unbalanced(b *testing.B) {
	shapes := [][2]int{{5, 200}, {20, 500}, {200, 5}}

	for _, s := range shapes {
		b.Run(fmt.Sprintf("%dx%d", s[0], s[1]), func(b *testing.B) {
			runSolve(b, grpcSolve, generateUnbalancedRequest(s[0], s[1]))
		})
	}
}

func BenchmarkSolve_Direct(b *testing.B) {
	// Без транспорта: только конвертация и решатель
	runSolve(b, direct.Solve, generateRequest(100, 0.3, 5, 1000))
}

func BenchmarkGenerateAndSolve(b *testing.B) {
	req := &matchingv1.GenerateRequest{
		LSize:             matchingv1.Range{Min: 50, Max: 100},
		RSize:             matchingv1.Range{Min: 50, Max: 100},
		LeftMultiplicity:  matchingv1.Range{Min: 1, Max: 5},
		RightMultiplicity: matchingv1.Range{Min: 1, Max: 5},
		Weight:            matchingv1.Range{Min: 1, Max: 1000},
		Density:           0.2,
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req.Seed = int64(i % 16)
		if _, err := client.GenerateAndSolve(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSolve_Parallel(b *testing.B) {
	req := generateRequest(60, 0.3, 5, 1000)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if _, err := client.Solve(ctx, req); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
