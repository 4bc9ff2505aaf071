package probe

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadiness_EmptyIsReady(t *testing.T) {
	set := New()

	state := set.QueryReadiness()
	assert.Equal(t, StatusReady, state.Status)
	assert.Empty(t, state.Checks)
}

func TestReadiness_FailingDependency(t *testing.T) {
	set := New()
	require.NoError(t, set.Readiness().Report("db", CheckFailing, "connection refused"))

	state := set.QueryReadiness()
	assert.Equal(t, StatusNotReady, state.Status)
	require.Len(t, state.Checks, 1)
	assert.Equal(t, "db", state.Checks[0].Name)
	assert.Equal(t, CheckFailing, state.Checks[0].Status)
	assert.Equal(t, []string{"db"}, state.Failing())
}

func TestReadiness_ExpectedButMissingIsNotReady(t *testing.T) {
	r := NewReadiness(nil)
	r.Expect("db", "cache")
	require.NoError(t, r.Report("cache", CheckOK, ""))

	state := r.Snapshot()
	assert.Equal(t, StatusNotReady, state.Status)
	assert.Equal(t, []string{"db"}, state.Failing())
	assert.Equal(t, CheckUnknown, state.Checks[0].Status)

	require.NoError(t, r.Report("db", CheckOK, ""))
	assert.Equal(t, StatusReady, r.Snapshot().Status)
}

func TestReadiness_KeepsRegistrationOrder(t *testing.T) {
	r := NewReadiness(nil)
	r.Expect("a", "b")
	require.NoError(t, r.Report("c", CheckOK, ""))
	require.NoError(t, r.Report("a", CheckOK, ""))
	r.Expect("a", "d")

	var names []string
	for _, c := range r.Snapshot().Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestReadiness_Remove(t *testing.T) {
	r := NewReadiness(nil)
	require.NoError(t, r.Report("db", CheckFailing, ""))
	require.NoError(t, r.Report("cache", CheckOK, ""))

	assert.True(t, r.Remove("db"))
	assert.False(t, r.Remove("db"))

	state := r.Snapshot()
	assert.Equal(t, StatusReady, state.Status)
	require.Len(t, state.Checks, 1)
	assert.Equal(t, "cache", state.Checks[0].Name)

	require.NoError(t, r.Report("cache", CheckFailing, ""))
	assert.Equal(t, StatusNotReady, r.Snapshot().Status)
}

func TestReadiness_RejectsInvalidReports(t *testing.T) {
	r := NewReadiness(nil)
	assert.Error(t, r.Report("", CheckOK, ""))
	assert.Error(t, r.Report("db", CheckStatus("green"), ""))
	assert.Empty(t, r.Snapshot().Checks)
}

func TestReadiness_SnapshotIsACopy(t *testing.T) {
	r := NewReadiness(nil)
	require.NoError(t, r.Report("db", CheckOK, ""))

	state := r.Snapshot()
	state.Checks[0].Status = CheckFailing

	assert.Equal(t, CheckOK, r.Snapshot().Checks[0].Status)
}

func TestReadiness_NilAndZeroValueAreNotReady(t *testing.T) {
	var r *Readiness
	assert.Equal(t, StatusNotReady, r.Snapshot().Status)

	var zero Readiness
	assert.Equal(t, StatusNotReady, zero.Snapshot().Status)

	var set *Set
	assert.Equal(t, StatusNotReady, set.QueryReadiness().Status)
}

// The aggregated status always equals the AND of the latest status of
// every registered check.
func TestReadiness_StatusIsConjunctionOfLatestResults(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []CheckStatus{CheckOK, CheckFailing, CheckUnknown}

	for round := 0; round < 50; round++ {
		r := NewReadiness(nil)
		latest := map[string]CheckStatus{}

		for step := 0; step < 30; step++ {
			name := fmt.Sprintf("dep-%d", rng.Intn(5))
			switch rng.Intn(4) {
			case 0:
				r.Remove(name)
				delete(latest, name)
			default:
				st := statuses[rng.Intn(len(statuses))]
				require.NoError(t, r.Report(name, st, ""))
				latest[name] = st
			}

			want := StatusReady
			for _, st := range latest {
				if st != CheckOK {
					want = StatusNotReady
				}
			}
			state := r.Snapshot()
			assert.Equal(t, want, state.Status, "round %d step %d", round, step)
			assert.Len(t, state.Checks, len(latest))
		}
	}
}

func TestReadiness_ConcurrentReadersNeverSeeTornState(t *testing.T) {
	r := NewReadiness(nil)
	names := []string{"db", "cache", "queue", "search"}
	r.Expect(names...)

	const writers, readers, iterations = 4, 8, 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				st := CheckOK
				if i%3 == 0 {
					st = CheckFailing
				}
				_ = r.Report(names[(w+i)%len(names)], st, fmt.Sprintf("writer %d", w))
			}
		}(w)
	}

	errs := make(chan error, readers)
	for rd := 0; rd < readers; rd++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				state := r.Snapshot()
				if len(state.Checks) != len(names) {
					errs <- fmt.Errorf("expected %d checks, got %d", len(names), len(state.Checks))
					return
				}
				allOK := true
				for _, c := range state.Checks {
					if c.Name == "" || !c.Status.Valid() {
						errs <- fmt.Errorf("torn check: %+v", c)
						return
					}
					if c.Status != CheckOK {
						allOK = false
					}
				}
				if allOK != (state.Status == StatusReady) {
					errs <- fmt.Errorf("status %s disagrees with checks %+v", state.Status, state.Checks)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
