package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/suisen/internal/model"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		rawURL  string
		host    string
		port    int
		tls     bool
		wantErr bool
	}{
		{
			name:   "https cloud URL with REST port",
			rawURL: "https://xyz.cloud.qdrant.io:6333",
			host:   "xyz.cloud.qdrant.io",
			port:   6334, // REST 6333 → gRPC 6334
			tls:    true,
		},
		{
			name:   "https cloud URL with gRPC port",
			rawURL: "https://xyz.cloud.qdrant.io:6334",
			host:   "xyz.cloud.qdrant.io",
			port:   6334,
			tls:    true,
		},
		{
			name:   "http local URL",
			rawURL: "http://localhost:6333",
			host:   "localhost",
			port:   6334,
			tls:    false,
		},
		{
			name:   "http no port defaults to 6334",
			rawURL: "http://qdrant.internal",
			host:   "qdrant.internal",
			port:   6334,
			tls:    false,
		},
		{
			name:   "custom port preserved",
			rawURL: "https://qdrant.example.com:9334",
			host:   "qdrant.example.com",
			port:   9334,
			tls:    true,
		},
		{
			name:    "empty URL",
			rawURL:  "",
			wantErr: true,
		},
		{
			name:    "no scheme no host",
			rawURL:  "not-a-url",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, tls, err := parseURL(tt.rawURL)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.tls, tls)
		})
	}
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "suisen_candidates", collectionName("suisen", model.ClassCandidate))
	assert.Equal(t, "suisen_teams", collectionName("suisen", model.ClassTeam))
	assert.Equal(t, "suisen_interviewers", collectionName("suisen", model.ClassInterviewer))
	assert.Equal(t, "suisen_positions", collectionName("suisen", model.ClassPosition))
	assert.Equal(t, "stage_candidates", collectionName("stage", model.ClassCandidate))
}

func TestPointPayloadCarriesIdentity(t *testing.T) {
	p := EntityPoint{
		Class:     model.ClassCandidate,
		ProfileID: "alice",
		TenantID:  "acme",
		Metadata:  map[string]any{"record": `{"id":"alice"}`},
	}

	payload := pointPayload(p)

	assert.Equal(t, "acme", payload["tenant_id"])
	assert.Equal(t, "alice", payload["profile_id"])
	assert.Equal(t, "Candidate", payload["class"])
	assert.Equal(t, `{"id":"alice"}`, payload["record"])
}

func TestPointPayloadDoesNotMutateMetadata(t *testing.T) {
	metadata := map[string]any{"record": "x"}
	p := EntityPoint{Class: model.ClassTeam, ProfileID: "t1", TenantID: "acme", Metadata: metadata}

	_ = pointPayload(p)

	_, leaked := metadata["tenant_id"]
	assert.False(t, leaked, "identity fields must not leak into the caller's metadata map")
}

func TestPayloadToMap(t *testing.T) {
	payload := map[string]*qdrant.Value{
		"tenant_id": qdrant.NewValueString("acme"),
		"score":     qdrant.NewValueDouble(0.85),
		"count":     qdrant.NewValueInt(7),
		"active":    qdrant.NewValueBool(true),
	}

	out := payloadToMap(payload)

	assert.Equal(t, "acme", out["tenant_id"])
	assert.Equal(t, 0.85, out["score"])
	assert.Equal(t, int64(7), out["count"])
	assert.Equal(t, true, out["active"])
}

func TestHitFromPayload(t *testing.T) {
	profileID, tenantID, metadata := hitFromPayload(map[string]any{
		"profile_id": "alice",
		"tenant_id":  "acme",
		"class":      "Candidate",
		"record":     `{"id":"alice"}`,
	})

	assert.Equal(t, "alice", profileID)
	assert.Equal(t, "acme", tenantID)
	assert.Equal(t, map[string]any{"record": `{"id":"alice"}`}, metadata)
}

func TestClassify(t *testing.T) {
	ix := &Index{}

	t.Run("expired context yields timeout kind", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		err := ix.classify(ctx, "search.Search", errors.New("rpc error"))
		assert.Equal(t, model.KindTimeout, model.KindOf(err))
	})

	t.Run("wrapped deadline yields timeout kind", func(t *testing.T) {
		wrapped := errors.New("rpc failed: " + context.DeadlineExceeded.Error())
		err := ix.classify(context.Background(), "search.Search", errors.Join(wrapped, context.DeadlineExceeded))
		assert.Equal(t, model.KindTimeout, model.KindOf(err))
	})

	t.Run("plain failure yields transport kind", func(t *testing.T) {
		err := ix.classify(context.Background(), "search.Search", errors.New("connection refused"))
		assert.Equal(t, model.KindTransport, model.KindOf(err))
	})
}

func TestEncodeDecodeRecord(t *testing.T) {
	type record struct {
		ID     string   `json:"id"`
		Skills []string `json:"skills"`
	}

	blob, err := EncodeRecord(record{ID: "alice", Skills: []string{"go", "cuda"}})
	require.NoError(t, err)

	var got record
	require.NoError(t, DecodeRecord(map[string]any{"record": blob}, &got))
	assert.Equal(t, "alice", got.ID)
	assert.Equal(t, []string{"go", "cuda"}, got.Skills)
}

func TestDecodeRecordMissingBlob(t *testing.T) {
	var got struct{}
	err := DecodeRecord(map[string]any{}, &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no record blob")
}
