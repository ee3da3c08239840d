package console

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verte-zerg/presim/internal/api"
	"github.com/verte-zerg/presim/internal/backendtest"
	"github.com/verte-zerg/presim/internal/model"
)

func newTestController(t *testing.T, opts ...Option) (*Controller, *backendtest.Server) {
	t.Helper()
	srv := backendtest.New(t)
	srv.SetEntities(
		model.EntityRef{EntityID: "light.kitchen", Name: "Kitchen", Domain: "light"},
		model.EntityRef{EntityID: "light.living", Name: "Living room", Domain: "light"},
		model.EntityRef{EntityID: "switch.radio", Name: "Radio", Domain: "switch"},
	)
	client := api.New(srv.URL, zap.NewNop())
	return New(client, opts...), srv
}

func TestLoadFillsDocumentedDefaults(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Load(context.Background()))

	got := c.Snapshot().Config
	assert.Equal(t, model.DefaultConfiguration(), got)
}

func TestLoadKeepsPresentFieldsAndDefaultsTheRest(t *testing.T) {
	c, srv := newTestController(t)
	srv.SetConfig(map[string]any{
		"entities":      []any{"switch.radio"},
		"interval_min":  0,
		"darkness_mode": "lux",
		"lux_threshold": 12.5,
		"dark_state":    "",
	})
	require.NoError(t, c.Load(context.Background()))

	got := c.Snapshot().Config
	want := model.DefaultConfiguration()
	want.Entities = []string{"switch.radio"}
	want.IntervalMin = 0
	want.DarknessMode = model.DarknessLux
	want.LuxThreshold = 12.5
	assert.Equal(t, want, got)
}

func TestLoadPreselectsConfiguredEntities(t *testing.T) {
	c, srv := newTestController(t)
	srv.SetConfig(map[string]any{"entities": []any{"light.living", "light.gone"}})
	require.NoError(t, c.Load(context.Background()))

	opts := c.Snapshot().Entities
	require.Len(t, opts, 4)
	assert.Equal(t, "light.kitchen", opts[0].EntityID)
	assert.False(t, opts[0].Selected)
	assert.True(t, opts[1].Selected)
	assert.False(t, opts[2].Selected)
	assert.Equal(t, "light.gone", opts[3].EntityID)
	assert.True(t, opts[3].Selected)
	assert.True(t, opts[3].Missing)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	want := model.Configuration{
		Entities:       []string{"switch.radio", "light.kitchen", "light.unlisted"},
		StartTime:      "17:45",
		EndTime:        "22:10",
		IntervalMin:    7,
		TrainingDays:   21,
		SlotMinutes:    10,
		Randomness:     0.3,
		DarknessMode:   model.DarknessEntityState,
		DarknessEntity: "binary_sensor.dusk",
		DarkState:      "on",
		LuxThreshold:   42.5,
	}
	_, err := c.Save(ctx, FormFromConfig(want))
	require.NoError(t, err)

	fresh := New(c.backend)
	require.NoError(t, fresh.Load(ctx))
	got := fresh.Snapshot().Config
	assert.ElementsMatch(t, want.Entities, got.Entities)
	got.Entities, want.Entities = nil, nil
	assert.Equal(t, want, got)
}

func TestSaveCoercesAndTrims(t *testing.T) {
	c, srv := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	form := FormFromConfig(c.Snapshot().Config)
	form.StartTime = " 18:30 "
	form.IntervalMin = " 10"
	form.Randomness = "0.25 "
	form.DarknessEntity = "  sensor.lux "
	_, err := c.Save(ctx, form)
	require.NoError(t, err)

	stored := srv.Config()
	assert.Equal(t, "18:30", stored["start_time"])
	assert.EqualValues(t, 10, stored["interval_min"])
	assert.EqualValues(t, 0.25, stored["randomness"])
	assert.Equal(t, "sensor.lux", stored["darkness_entity"])
}

func TestSaveRefreshesStatusAfterPost(t *testing.T) {
	c, srv := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	_, err := c.Save(ctx, FormFromConfig(c.Snapshot().Config))
	require.NoError(t, err)

	paths := srv.Paths()
	require.GreaterOrEqual(t, len(paths), 2)
	assert.Equal(t, []string{"POST /api/config", "GET /api/status"}, paths[len(paths)-2:])
	assert.NotNil(t, c.Snapshot().Status)
}

func TestFailedSaveLeavesBufferAndStatusUntouched(t *testing.T) {
	c, srv := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	before := c.Snapshot().Config

	srv.Fail(http.MethodPost, api.PathConfig, http.StatusBadRequest, "slot_minutes must be positive")
	form := FormFromConfig(before)
	form.SlotMinutes = "-5"
	_, err := c.Save(ctx, form)
	require.Error(t, err)
	assert.Equal(t, "slot_minutes must be positive", err.Error())

	assert.Equal(t, before, c.Snapshot().Config)
	assert.Nil(t, c.Snapshot().Status)
	assert.NotContains(t, srv.Paths(), "GET /api/status")
}

func TestCoercionFailureSendsNothing(t *testing.T) {
	c, srv := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	calls := len(srv.Requests())

	form := FormFromConfig(c.Snapshot().Config)
	form.TrainingDays = "two weeks"
	_, err := c.Save(ctx, form)

	var cerr *CoercionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, FieldTrainingDays, cerr.Field)
	assert.Len(t, srv.Requests(), calls)
}

func TestDispatchRefreshesBeforeReturning(t *testing.T) {
	for _, action := range Actions {
		t.Run(string(action), func(t *testing.T) {
			c, srv := newTestController(t)
			_, err := c.Dispatch(context.Background(), action)
			require.NoError(t, err)
			assert.Equal(t, []string{"POST " + action.Path(), "GET /api/status"}, srv.Paths())
			require.NotNil(t, c.Snapshot().Status)
		})
	}
}

func TestDispatchStartShowsRunning(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.Dispatch(context.Background(), ActionStart)
	require.NoError(t, err)
	assert.True(t, c.Snapshot().Status.Running)
}

func TestDispatchFailureSkipsRefresh(t *testing.T) {
	c, srv := newTestController(t)
	srv.Fail(http.MethodPost, api.PathStep, http.StatusConflict, "not running")

	_, err := c.Dispatch(context.Background(), ActionStep)
	require.EqualError(t, err, "not running")
	assert.Equal(t, []string{"POST /api/step"}, srv.Paths())
}

func TestDispatchReportsRefreshFailureSeparately(t *testing.T) {
	c, srv := newTestController(t)
	srv.Fail(http.MethodGet, api.PathStatus, http.StatusBadGateway, "upstream down")

	ack, err := c.Dispatch(context.Background(), ActionStart)
	require.Error(t, err)
	var refreshErr *RefreshError
	require.True(t, errors.As(err, &refreshErr))
	assert.Equal(t, "start", refreshErr.Op)
	assert.EqualError(t, refreshErr.Err, "upstream down")
	assert.NotNil(t, ack)
}

func TestDispatchRejectsUnknownAction(t *testing.T) {
	c, srv := newTestController(t)
	_, err := c.Dispatch(context.Background(), Action("reboot"))
	require.Error(t, err)
	assert.Empty(t, srv.Requests())
}

func TestStaleStatusIsDiscarded(t *testing.T) {
	c, srv := newTestController(t)
	ctx := context.Background()
	srv.SetStatus(map[string]any{"running": false, "preview": []any{}})

	arrived, release := srv.HoldNextStatus()
	type result struct {
		applied bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		applied, err := c.Refresh(ctx)
		done <- result{applied, err}
	}()
	<-arrived

	srv.SetStatus(map[string]any{"running": true, "next_run": "2024-01-01T18:00:00Z", "preview": []any{}})
	applied, err := c.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, applied)

	close(release)
	older := <-done
	require.NoError(t, older.err)
	assert.False(t, older.applied)

	st := c.Snapshot()
	require.NotNil(t, st.Status)
	assert.True(t, st.Status.Running)
	assert.Equal(t, "2024-01-01T18:00:00Z", st.Status.NextRun)
}

func TestFailedNewerFetchDoesNotShadowOlderSuccess(t *testing.T) {
	c, srv := newTestController(t)
	ctx := context.Background()
	srv.SetStatus(map[string]any{"running": true, "preview": []any{}})

	arrived, release := srv.HoldNextStatus()
	type result struct {
		applied bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		applied, err := c.Refresh(ctx)
		done <- result{applied, err}
	}()
	<-arrived

	srv.Fail(http.MethodGet, api.PathStatus, http.StatusBadGateway, "transient")
	applied, err := c.Refresh(ctx)
	require.EqualError(t, err, "transient")
	assert.False(t, applied)
	assert.EqualError(t, c.Snapshot().StatusErr, "transient")
	srv.Heal(http.MethodGet, api.PathStatus)

	close(release)
	older := <-done
	require.NoError(t, older.err)
	assert.True(t, older.applied)

	st := c.Snapshot()
	require.NotNil(t, st.Status)
	assert.True(t, st.Status.Running)
	assert.NoError(t, st.StatusErr)
}

func TestFailedOlderFetchAfterNewerSuccessIsIgnored(t *testing.T) {
	c, srv := newTestController(t)
	srv.SetStatus(map[string]any{"running": true, "preview": []any{}})

	olderCtx, cancelOlder := context.WithCancel(context.Background())
	arrived, release := srv.HoldNextStatus()
	defer close(release)
	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(olderCtx)
		done <- err
	}()
	<-arrived

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	cancelOlder()
	require.Error(t, <-done)
	st := c.Snapshot()
	require.NotNil(t, st.Status)
	assert.NoError(t, st.StatusErr)
}

func TestOnApplySeesEveryAppliedSnapshotInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []bool
	c, srv := newTestController(t, WithOnApply(func(st model.StatusSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st.Running)
	}))
	ctx := context.Background()

	srv.SetStatus(map[string]any{"running": false, "preview": []any{}})
	_, err := c.Refresh(ctx)
	require.NoError(t, err)
	srv.SetStatus(map[string]any{"running": true, "preview": []any{}})
	_, err = c.Refresh(ctx)
	require.NoError(t, err)

	srv.Fail(http.MethodGet, api.PathStatus, http.StatusBadGateway, "down")
	_, err = c.Refresh(ctx)
	require.Error(t, err)

	arrived, release := srv.HoldNextStatus()
	srv.Heal(http.MethodGet, api.PathStatus)
	srv.SetStatus(map[string]any{"running": false, "preview": []any{}})
	done := make(chan bool, 1)
	go func() {
		applied, _ := c.Refresh(ctx)
		done <- applied
	}()
	<-arrived
	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	close(release)
	assert.False(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true, false}, seen)
}

func TestFailedRefreshKeepsLastSnapshot(t *testing.T) {
	c, srv := newTestController(t)
	ctx := context.Background()
	srv.SetStatus(map[string]any{"running": true, "preview": []any{}})
	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	srv.Fail(http.MethodGet, api.PathStatus, http.StatusBadGateway, "upstream down")
	_, err = c.Refresh(ctx)
	require.Error(t, err)

	st := c.Snapshot()
	require.NotNil(t, st.Status)
	assert.True(t, st.Status.Running)
	assert.EqualError(t, st.StatusErr, "upstream down")

	srv.Heal(http.MethodGet, api.PathStatus)
	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	assert.NoError(t, c.Snapshot().StatusErr)
}

func TestRunSurvivesFailedPolls(t *testing.T) {
	c, srv := newTestController(t)
	srv.Fail(http.MethodGet, api.PathStatus, http.StatusInternalServerError, "boom")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		return countPath(srv.Paths(), "GET /api/status") >= 3
	}, 2*time.Second, 5*time.Millisecond)

	srv.Heal(http.MethodGet, api.PathStatus)
	require.Eventually(t, func() bool {
		return c.Snapshot().Status != nil
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

type memoryJournal struct {
	mu   sync.Mutex
	recs []model.ActionRecord
	err  error
}

func (j *memoryJournal) InsertAction(_ context.Context, rec model.ActionRecord) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return 0, j.err
	}
	j.recs = append(j.recs, rec)
	return int64(len(j.recs)), nil
}

func TestActionsAreJournaled(t *testing.T) {
	journal := &memoryJournal{}
	c, srv := newTestController(t, WithJournal(journal))
	ctx := context.Background()
	srv.Fail(http.MethodPost, api.PathStop, http.StatusServiceUnavailable, "busy")

	_, err := c.Dispatch(ctx, ActionTrain)
	require.NoError(t, err)
	_, err = c.Dispatch(ctx, ActionStop)
	require.Error(t, err)
	_, err = c.Save(ctx, FormFromConfig(model.DefaultConfiguration()))
	require.NoError(t, err)

	require.Len(t, journal.recs, 3)
	assert.Equal(t, "train", journal.recs[0].Action)
	assert.True(t, journal.recs[0].OK)
	assert.Equal(t, "stop", journal.recs[1].Action)
	assert.False(t, journal.recs[1].OK)
	assert.Equal(t, "busy", journal.recs[1].Error)
	assert.Equal(t, "save", journal.recs[2].Action)
}

func TestJournalFailureDoesNotFailAction(t *testing.T) {
	journal := &memoryJournal{err: errors.New("disk full")}
	c, _ := newTestController(t, WithJournal(journal))

	_, err := c.Dispatch(context.Background(), ActionStart)
	assert.NoError(t, err)
}

func countPath(paths []string, want string) int {
	n := 0
	for _, p := range paths {
		if p == want {
			n++
		}
	}
	return n
}
