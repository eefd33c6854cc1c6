package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview/errors"
	"interview/job"
)

func TestSearchJobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "前端工程師", r.URL.Query().Get("keyword"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs":[{"title":"Frontend Engineer","company":"Acme","url":"https://x"}]}`))
	}))
	defer srv.Close()

	jobs, err := New(srv.URL, time.Second).SearchJobs(context.Background(), "前端工程師")
	require.NoError(t, err)
	assert.Equal(t, []job.Job{{Title: "Frontend Engineer", Company: "Acme", URL: "https://x"}}, jobs)
}

func TestSearchJobsEmptyIsNotAnError(t *testing.T) {
	for _, body := range []string{`{"jobs":[]}`, `{}`} {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
			}))
			defer srv.Close()

			jobs, err := New(srv.URL, time.Second).SearchJobs(context.Background(), "none")
			require.NoError(t, err)
			assert.NotNil(t, jobs)
			assert.Empty(t, jobs)
		})
	}
}

func TestSearchJobsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).SearchJobs(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Contains(t, err.Error(), "502")
}

func TestSearchJobsUnlabelledBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(`{"jobs":[{"title":"Backend Engineer"}]}`))
	}))
	defer srv.Close()

	jobs, err := New(srv.URL, time.Second).SearchJobs(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []job.Job{{Title: "Backend Engineer"}}, jobs)
}

func TestSearchJobsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	jobs, err := New(srv.URL, time.Second).SearchJobs(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Nil(t, jobs)
}

func TestServerErrorBodyIsCutOnRuneBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("伺服器錯誤", 100), http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).SearchJobs(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), strings.Repeat("伺服器錯誤", 40))
	assert.NotContains(t, err.Error(), strings.Repeat("伺服器錯誤", 41))
}

func TestStartInterview(t *testing.T) {
	selected := job.Job{Title: "Frontend Engineer", Company: "Acme", URL: "https://x"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/start_interview", r.URL.Path)
		var req struct {
			Job job.Job `json:"job"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, selected, req.Job)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"Tell me about yourself","audio_url":"a.mp3"}`))
	}))
	defer srv.Close()

	op, err := New(srv.URL, time.Second).StartInterview(context.Background(), selected)
	require.NoError(t, err)
	assert.Equal(t, Opening{Text: "Tell me about yourself", AudioURL: "a.mp3"}, op)
	assert.False(t, op.Empty())
}

func TestStartInterviewUnlabelledBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "Tell me about yourself"})
	}))
	defer srv.Close()

	op, err := New(srv.URL, time.Second).StartInterview(context.Background(), job.Job{Title: "SRE"})
	require.NoError(t, err)
	assert.Equal(t, Opening{Text: "Tell me about yourself"}, op)
}

func TestStartInterviewUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).StartInterview(context.Background(), job.Job{Title: "SRE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
}

func TestResolveURL(t *testing.T) {
	c := New("http://127.0.0.1:8001/", time.Second)
	for _, tt := range []struct{ in, want string }{
		{"", ""},
		{"a.mp3", "http://127.0.0.1:8001/a.mp3"},
		{"/static/q1.mp3", "http://127.0.0.1:8001/static/q1.mp3"},
		{"https://cdn.example.com/q1.mp3", "https://cdn.example.com/q1.mp3"},
	} {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ResolveURL(tt.in))
		})
	}
}
