package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/liftcoach/internal/domain"
)

// fakeRemoteLog answers the four remote log actions from memory.
type fakeRemoteLog struct {
	mu      sync.Mutex
	records []domain.SetRecord
	actions int
}

func (f *fakeRemoteLog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	raw, _ := io.ReadAll(r.Body)
	var body struct {
		Action string           `json:"action"`
		Data   domain.SetRecord `json:"data"`
		Query  struct {
			ProgressKey string `json:"progress_key"`
			Limit       int    `json:"limit"`
		} `json:"query"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions++
	reply := map[string]any{"ok": true}
	switch body.Action {
	case domain.ActionPing:
		reply["ts"] = "2026-10-17T08:00:00Z"
	case domain.ActionGetExercises:
		reply["items"] = []domain.Exercise{
			{ID: "EX0201", Name: "Lat Pulldown", BodypartUI: "Back", Pattern: "Vertical Pull", RangeType: "Mid", EquipmentCat: "Cable", TargetRepMin: 8, TargetRepMax: 12},
			{ID: "EX0204", Name: "One Arm DB Row", BodypartUI: "Back", Pattern: "Horizontal Pull", RangeType: "Long", EquipmentCat: "Dumbbell", TargetRepMin: 8, TargetRepMax: 12},
		}
	case domain.ActionGetLastByProgressKey:
		items := make([]domain.SetRecord, 0)
		for i := len(f.records) - 1; i >= 0 && len(items) < body.Query.Limit; i-- {
			if f.records[i].ProgressKey() == body.Query.ProgressKey {
				items = append(items, f.records[i])
			}
		}
		reply["items"] = items
	case domain.ActionAppendSetLog:
		f.records = append(f.records, body.Data)
	default:
		reply = map[string]any{"ok": false, "error": "unknown action"}
	}
	_ = json.NewEncoder(w).Encode(reply)
}

func (f *fakeRemoteLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeRemoteLog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actions
}

func setupWorkflow(t *testing.T) *fakeRemoteLog {
	t.Helper()
	remote := &fakeRemoteLog{}
	server := httptest.NewServer(remote)
	t.Cleanup(server.Close)

	t.Setenv("LIFTCOACH_API_URL", server.URL+"/exec")
	t.Setenv("LIFTCOACH_STORE", "sqlite")
	t.Setenv("LIFTCOACH_DB_PATH", filepath.Join(t.TempDir(), "liftcoach.db"))
	t.Setenv("LIFTCOACH_USER_ID", "U001")
	t.Setenv("LIFTCOACH_WORKOUT_ID", "W-20261017")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("LOG_FILE", "")
	return remote
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestOfflineSetIsDeliveredBySync(t *testing.T) {
	remote := setupWorkflow(t)

	out := execute(t, "exercises", "Back", "--select", "EX0201")
	require.Contains(t, out, "selected Lat Pulldown (Back|Vertical Pull|Mid|Cable), next set 1")
	require.Contains(t, out, "no previous sets")

	out = execute(t, "save", "--offline", "--weight", "60", "--reps", "10", "--rir", "2")
	require.Equal(t, "queued set 1 of Lat Pulldown (offline); 1 pending\n", out)
	require.Zero(t, remote.count())

	out = execute(t, "pending", "--format", "json")
	var pending []pendingEntry
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 1)
	require.Equal(t, 1, pending[0].SetNo)

	out = execute(t, "sync")
	require.Equal(t, "delivered 1 of 1; 0 pending\n", out)
	require.Equal(t, 1, remote.count())

	out = execute(t, "save", "--weight", "62.5", "--reps", "8", "--rir", "1")
	require.Contains(t, out, "saved set 2 of Lat Pulldown: 62.5kg x 8 @ RIR 1")
	require.Equal(t, 2, remote.count())

	out = execute(t, "last", "--format", "yaml")
	require.Contains(t, out, "set_no: 2")
	require.Contains(t, out, "weight: 62.5")

	out = execute(t, "exercises", "Back", "--select", "EX0201")
	require.Contains(t, out, "next set 3")
	require.Contains(t, out, "last: 62.5kg x 8 @ RIR 1")
}

func TestSaveWithoutSelectionFails(t *testing.T) {
	setupWorkflow(t)

	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"save", "--weight", "60", "--reps", "10"})
	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestPingAndCatalogSearch(t *testing.T) {
	setupWorkflow(t)

	require.Equal(t, "ok: 2026-10-17T08:00:00Z\n", execute(t, "ping"))

	out := execute(t, "exercises", "Back", "row")
	require.Contains(t, out, "1 exercises\n")
	require.Contains(t, out, "One Arm DB Row (Dumbbell / Long)")
}

func TestOfflineRemoteOnlyCommandsRefuse(t *testing.T) {
	remote := setupWorkflow(t)

	for _, args := range [][]string{
		{"ping", "--offline"},
		{"exercises", "Back", "--offline"},
		{"exercises", "Back", "--select", "EX0201", "--offline"},
		{"last", "Back|Vertical Pull|Mid|Cable", "--offline"},
	} {
		cmd := NewRootCommand()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(context.Background())
		require.ErrorIs(t, err, ErrOffline, "%v", args)
	}
	require.Zero(t, remote.calls())
}
