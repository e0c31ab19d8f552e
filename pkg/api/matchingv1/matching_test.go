package matchingv1

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestSolveRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SolveRequest
		wantErr bool
	}{
		{name: "valid", req: SolveRequest{LSize: 2, RSize: 1}},
		{name: "empty left", req: SolveRequest{LSize: 0, RSize: 1}, wantErr: true},
		{name: "empty right", req: SolveRequest{LSize: 1, RSize: 0}, wantErr: true},
		{
			name: "multiplicities match sides",
			req:  SolveRequest{LSize: 2, RSize: 1, LeftMultiplicities: []int64{1, 2}, RightMultiplicities: []int64{3}},
		},
		{
			name:    "left multiplicities length",
			req:     SolveRequest{LSize: 2, RSize: 1, LeftMultiplicities: []int64{1}},
			wantErr: true,
		},
		{
			name:    "right multiplicities length",
			req:     SolveRequest{LSize: 2, RSize: 1, RightMultiplicities: []int64{1, 1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRateCost(t *testing.T) {
	t.Run("solve", func(t *testing.T) {
		assert.Equal(t, 1, (&SolveRequest{}).RateCost())
		assert.Equal(t, 1, (&SolveRequest{Edges: make([]Edge, EdgesPerCostUnit-1)}).RateCost())
		assert.Equal(t, 2, (&SolveRequest{Edges: make([]Edge, EdgesPerCostUnit)}).RateCost())
		assert.Equal(t, 6, (&SolveRequest{Edges: make([]Edge, 5500)}).RateCost())
	})

	t.Run("generate", func(t *testing.T) {
		req := &GenerateRequest{
			LSize:   Range{Min: 1, Max: 101},
			RSize:   Range{Min: 1, Max: 201},
			Density: 0.5,
		}
		// до 100 x 200 x 0.5 = 10000 рёбер
		assert.Equal(t, 11, req.RateCost())

		req.Density = 5
		assert.Equal(t, 21, req.RateCost())

		assert.Equal(t, 1, (&GenerateRequest{}).RateCost())
	})
}

func TestListRunsRequest_Validate(t *testing.T) {
	assert.NoError(t, (&ListRunsRequest{Source: SourceGenerate}).Validate())
	assert.Error(t, (&ListRunsRequest{Limit: -1}).Validate())
	assert.Error(t, (&ListRunsRequest{Source: "batch"}).Validate())
	assert.Error(t, (&GetRunRequest{}).Validate())
}

func TestCodec_OptionalFieldsOmitted(t *testing.T) {
	data, err := Codec{}.Marshal(&SolveOptions{ScalingFactor: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"scaling_factor":4}`, string(data))

	var opts SolveOptions
	require.NoError(t, Codec{}.Unmarshal([]byte(`{"price_refine_limit":0,"verify":false}`), &opts))
	require.NotNil(t, opts.PriceRefineLimit)
	assert.Equal(t, 0, *opts.PriceRefineLimit)
	require.NotNil(t, opts.Verify)
	assert.False(t, *opts.Verify)
	assert.Nil(t, opts.GlobalRelabelFreqFactor)

	assert.Error(t, Codec{}.Unmarshal([]byte(`{`), &opts))
}

type echoServer struct {
	UnimplementedMatchingServiceServer
}

func (echoServer) Solve(_ context.Context, req *SolveRequest) (*SolveResponse, error) {
	resp := &SolveResponse{GraphHash: "echo"}
	for _, e := range req.Edges {
		resp.Value += e.Weight
		resp.Matches = append(resp.Matches, Match{Left: e.Left, Right: e.Right})
	}
	return resp, nil
}

func dialBufconn(t *testing.T, srv MatchingServiceServer) MatchingServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterMatchingServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewMatchingServiceClient(conn)
}

func TestServiceDesc_RoundTripOverJSONCodec(t *testing.T) {
	client := dialBufconn(t, echoServer{})

	resp, err := client.Solve(context.Background(), &SolveRequest{
		LSize: 2,
		RSize: 2,
		Edges: []Edge{{Left: 0, Right: 1, Weight: 3}, {Left: 1, Right: 0, Weight: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.Value)
	assert.Equal(t, []Match{{Left: 0, Right: 1}, {Left: 1, Right: 0}}, resp.Matches)
	assert.Equal(t, "echo", resp.GraphHash)

	_, err = client.ListRuns(context.Background(), &ListRunsRequest{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
