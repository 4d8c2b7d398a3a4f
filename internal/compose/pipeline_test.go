package compose

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"luxgen/internal/domain"
	"luxgen/internal/providers"
	"luxgen/internal/storage"
)

type scriptedRefiner struct {
	mu        sync.Mutex
	submitErr error
	statuses  []providers.Status
	payload   providers.Payload
	polls     int
}

func (r *scriptedRefiner) Name() string { return "fal" }

func (r *scriptedRefiner) Submit(ctx context.Context, payload providers.Payload) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payload = payload
	if r.submitErr != nil {
		return "", r.submitErr
	}
	return "refine-1", nil
}

func (r *scriptedRefiner) Poll(ctx context.Context, providerJobID string) (*providers.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.polls
	if idx >= len(r.statuses) {
		idx = len(r.statuses) - 1
	}
	r.polls++
	st := r.statuses[idx]
	return &st, nil
}

func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, solidImage(w, h, c), imaging.PNG); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// newPipelineServer serves both the segmentation endpoint and the base image.
func newPipelineServer(t *testing.T, segStatus int) *httptest.Server {
	t.Helper()
	cutout := encodePNG(t, 200, 100, color.NRGBA{255, 0, 0, 255})
	baseImg := encodePNG(t, 1000, 800, color.NRGBA{0, 0, 255, 255})
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/removebg"):
			if got := r.Header.Get("X-Api-Key"); got != "seg-key" {
				t.Errorf("segmentation api key = %q", got)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("segmentation form: %v", err)
			}
			if got := r.FormValue("image_url"); got == "" {
				t.Error("segmentation request missing image_url field")
			}
			if segStatus != http.StatusOK {
				http.Error(w, "payment required", segStatus)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			w.Write(cutout)
		case strings.HasPrefix(r.URL.Path, "/base"):
			w.Header().Set("Content-Type", "image/png")
			w.Write(baseImg)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestPipeline(t *testing.T, srv *httptest.Server, refiner providers.Adapter, store storage.ObjectStore) *Pipeline {
	t.Helper()
	seg, err := NewSegmenter(SegmenterOptions{
		Endpoint:   srv.URL + "/removebg",
		APIKey:     "seg-key",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewSegmenter() error = %v", err)
	}
	p, err := New(Options{
		Segmenter:    seg,
		Refiner:      refiner,
		Store:        store,
		HTTPClient:   srv.Client(),
		Logger:       zerolog.New(io.Discard),
		PollInterval: time.Millisecond,
		WaitTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestComposeFullPipeline(t *testing.T) {
	srv := newPipelineServer(t, http.StatusOK)
	defer srv.Close()

	mem := storage.NewMemStore("https://store.example.com/bucket")
	refiner := &scriptedRefiner{statuses: []providers.Status{
		{State: providers.StateProcessing, Progress: providers.ProgressRunning},
		{State: providers.StateSucceeded, ResultURL: "https://fal.example.com/refined.png"},
	}}
	p := newTestPipeline(t, srv, refiner, mem)

	url, err := p.Compose(context.Background(), "user-1", srv.URL+"/product.png", srv.URL+"/base.png", "a mug on a table", "16:9")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if url != "https://fal.example.com/refined.png" {
		t.Fatalf("Compose() url = %q, want refined url", url)
	}

	keys := mem.Keys()
	if len(keys) != 1 {
		t.Fatalf("store has %d objects, want the single composite", len(keys))
	}
	if !strings.HasPrefix(keys[0], "videos/user-1/debug/COLLAGE_VERIFIED_") {
		t.Fatalf("composite key = %q, want debug collage path", keys[0])
	}

	// The composite is decodable and already cropped to the requested ratio.
	composite, err := imaging.Decode(bytes.NewReader(mem.Get(keys[0])))
	if err != nil {
		t.Fatalf("decode composite: %v", err)
	}
	w, h := composite.Bounds().Dx(), composite.Bounds().Dy()
	if w != 1000 || h != 562 {
		t.Fatalf("composite = %dx%d, want 1000x562 for 16:9", w, h)
	}

	if refiner.payload.ImageURL != mem.PublicURL(keys[0]) {
		t.Fatalf("refiner input = %q, want stored composite url", refiner.payload.ImageURL)
	}
	if refiner.payload.Strength != 0.22 {
		t.Fatalf("refiner strength = %v, want default 0.22", refiner.payload.Strength)
	}
}

func TestComposeSegmentationFailure(t *testing.T) {
	srv := newPipelineServer(t, http.StatusPaymentRequired)
	defer srv.Close()

	refiner := &scriptedRefiner{statuses: []providers.Status{{State: providers.StateSucceeded, ResultURL: "u"}}}
	p := newTestPipeline(t, srv, refiner, storage.NewMemStore(""))

	_, err := p.Compose(context.Background(), "user-1", srv.URL+"/product.png", srv.URL+"/base.png", "p", "16:9")
	if !errors.Is(err, domain.ErrCompositionFailed) {
		t.Fatalf("Compose() error = %v, want ErrCompositionFailed", err)
	}
	if refiner.polls != 0 {
		t.Fatal("refiner was polled after segmentation failed")
	}
}

func TestComposeRefinementFailure(t *testing.T) {
	srv := newPipelineServer(t, http.StatusOK)
	defer srv.Close()

	refiner := &scriptedRefiner{statuses: []providers.Status{
		{State: providers.StateFailed, FailureReason: "nsfw"},
	}}
	p := newTestPipeline(t, srv, refiner, storage.NewMemStore(""))

	_, err := p.Compose(context.Background(), "user-1", srv.URL+"/product.png", srv.URL+"/base.png", "p", "16:9")
	if !errors.Is(err, domain.ErrRefinementFailed) {
		t.Fatalf("Compose() error = %v, want ErrRefinementFailed", err)
	}
}

func TestComposeInvalidAspectRatio(t *testing.T) {
	srv := newPipelineServer(t, http.StatusOK)
	defer srv.Close()

	refiner := &scriptedRefiner{statuses: []providers.Status{{State: providers.StateSucceeded, ResultURL: "u"}}}
	p := newTestPipeline(t, srv, refiner, storage.NewMemStore(""))

	_, err := p.Compose(context.Background(), "user-1", srv.URL+"/product.png", srv.URL+"/base.png", "p", "wide")
	if !errors.Is(err, domain.ErrCompositionFailed) {
		t.Fatalf("Compose() error = %v, want ErrCompositionFailed", err)
	}
}

func TestNewSegmenterRequiresKey(t *testing.T) {
	if _, err := NewSegmenter(SegmenterOptions{}); !errors.Is(err, ErrMissingSegmentationKey) {
		t.Fatalf("NewSegmenter() error = %v, want ErrMissingSegmentationKey", err)
	}
}
