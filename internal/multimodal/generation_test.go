package multimodal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/promptlibrary/internal/llm"
)

func TestImageGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a red fox", body["prompt"])
		assert.Equal(t, "b64_json", body["response_format"])

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString([]byte("png"))}},
		})
	}))
	defer srv.Close()

	media, err := NewImageGenerator("key", srv.URL, "").Generate(context.Background(), "a red fox")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), media.Data)
	assert.Equal(t, "image/png", media.ContentType)
	assert.Equal(t, "dall-e-3", media.Model)
}

func TestImageGenerator_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewImageGenerator("bad", srv.URL, "").Generate(context.Background(), "x")
	assert.ErrorIs(t, err, llm.ErrUnauthorized)
}

func TestVideoGenerator_PollsUntilComplete(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/videos":
			json.NewEncoder(w).Encode(videoJob{ID: "vid_1", Status: "queued"})
		case r.URL.Path == "/videos/vid_1":
			status := "in_progress"
			if polls.Add(1) >= 2 {
				status = "completed"
			}
			json.NewEncoder(w).Encode(videoJob{ID: "vid_1", Status: status})
		case r.URL.Path == "/videos/vid_1/content":
			w.Write([]byte("mp4"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	media, err := NewVideoGenerator("key", srv.URL, "", time.Millisecond).Generate(context.Background(), "waves")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4"), media.Data)
	assert.Equal(t, "video/mp4", media.ContentType)
	assert.Equal(t, int32(2), polls.Load())
}

func TestVideoGenerator_JobFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"vid_2","status":"failed","error":{"message":"moderation blocked"}}`))
	}))
	defer srv.Close()

	_, err := NewVideoGenerator("key", srv.URL, "", time.Millisecond).Generate(context.Background(), "x")
	assert.ErrorContains(t, err, "moderation blocked")
}

func TestVideoGenerator_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(videoJob{ID: "vid_3", Status: "in_progress"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewVideoGenerator("key", srv.URL, "", 5*time.Millisecond).Generate(ctx, "x")
	assert.Error(t, err)
}
