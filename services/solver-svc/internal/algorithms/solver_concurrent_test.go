// internal/algorithms/solver_concurrent_test.go
package algorithms

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"coassign/pkg/apperror"
	"coassign/pkg/domain"
)

func TestSolverConcurrency(t *testing.T) {
	pool := NewSolverPool(10)

	t.Run("ConcurrentSolves", func(t *testing.T) {
		// Один и тот же граф решается параллельно: вход не модифицируется
		g := domain.Example()
		var wg sync.WaitGroup
		errors := make(chan error, 100)

		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				res, err := pool.SolvePooled(ctx, g, DefaultParams())
				if err != nil {
					errors <- err
					return
				}
				if res.Solution.Value() != domain.ExampleOptimum {
					errors <- fmt.Errorf("unexpected value %d", res.Solution.Value())
					return
				}
				if err := res.Solution.Check(); err != nil {
					errors <- err
				}
			}()
		}

		wg.Wait()
		close(errors)

		for err := range errors {
			t.Error(err)
		}
	})

	t.Run("ContextCancellation", func(t *testing.T) {
		busy := NewSolverPool(1)
		if err := busy.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		defer busy.Release()

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // Отменяем сразу

		_, err := busy.SolvePooled(ctx, domain.Example(), DefaultParams())
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("PoolExhaustion", func(t *testing.T) {
		smallPool := NewSolverPool(2)

		var wg sync.WaitGroup
		started := make(chan struct{}, 10)
		blocked := make(chan struct{})

		// Занимаем все слоты пула
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				if err := smallPool.Acquire(context.Background()); err != nil {
					t.Error(err)
					return
				}
				started <- struct{}{}
				<-blocked // Ждём сигнала
				smallPool.Release()
			}()
		}

		<-started
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := smallPool.Acquire(ctx)
		if err != context.DeadlineExceeded {
			t.Errorf("expected deadline exceeded, got %v", err)
		}

		close(blocked)
		wg.Wait()
	})
}

func TestBatchSolve(t *testing.T) {
	pool := NewSolverPool(4)
	rng := rand.New(rand.NewSource(1))

	tasks := make([]BatchTask, 0, 12)
	for i := 0; i < 10; i++ {
		tasks = append(tasks, BatchTask{
			TaskID: fmt.Sprintf("task-%d", i),
			Graph:  domain.MustRandomGraph(rng, domain.DefaultRandomParams()),
			Params: DefaultParams(),
		})
	}
	// Некорректные параметры и пустая доля не должны влиять на остальные задачи
	tasks = append(tasks,
		BatchTask{TaskID: "bad-params", Graph: domain.Example(), Params: DefaultParams().WithScalingFactor(0)},
		BatchTask{TaskID: "empty-side", Graph: domain.NewBuilder(0, 2).MustBuild(), Params: DefaultParams()},
	)

	results := pool.BatchSolve(context.Background(), tasks)
	if len(results) != len(tasks) {
		t.Fatalf("got %d results for %d tasks", len(results), len(tasks))
	}

	for i, r := range results {
		if r.TaskID != tasks[i].TaskID {
			t.Errorf("result %d: task id %q, want %q", i, r.TaskID, tasks[i].TaskID)
		}
	}
	for _, r := range results[:10] {
		if r.Error != nil {
			t.Errorf("%s: %v", r.TaskID, r.Error)
			continue
		}
		if err := r.Result.Solution.Check(); err != nil {
			t.Errorf("%s: %v", r.TaskID, err)
		}
	}
	if !apperror.Is(results[10].Error, apperror.CodeInvalidScalingFactor) {
		t.Errorf("bad-params: unexpected error %v", results[10].Error)
	}
	if !apperror.Is(results[11].Error, apperror.CodeEmptySide) {
		t.Errorf("empty-side: unexpected error %v", results[11].Error)
	}
}

func TestPanicError(t *testing.T) {
	inv := &InvariantError{Stage: "pull", Epsilon: 3, Err: fmt.Errorf("excess mismatch")}

	tests := []struct {
		name  string
		value any
		code  apperror.ErrorCode
	}{
		{"invariant", inv, apperror.CodeInvariantViolation},
		{"app_error", apperror.ErrEmptySide, apperror.CodeEmptySide},
		{"plain_error", fmt.Errorf("boom"), apperror.CodeInternal},
		{"string", "boom", apperror.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PanicError(tt.value)
			if got := apperror.Code(err); got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}
}

func BenchmarkConcurrentSolves(b *testing.B) {
	pool := NewSolverPool(8)
	rng := rand.New(rand.NewSource(42))
	graphs := make([]*domain.BipartiteGraph, 16)
	for i := range graphs {
		graphs[i] = domain.MustRandomGraph(rng, domain.DefaultRandomParams())
	}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = pool.SolvePooled(context.Background(), graphs[i%len(graphs)], DefaultParams())
			i++
		}
	})
}
