package imagecache_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"allthatstax/internal/card"
	"allthatstax/internal/fetch"
	"allthatstax/internal/imagecache"
	"allthatstax/internal/services"
)

type imageServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	s := &imageServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("image:" + r.URL.Path))
	}))
	t.Cleanup(s.Close)
	return s
}

func newCache(t *testing.T, base string) *imagecache.Cache {
	t.Helper()
	cache, err := imagecache.New(filepath.Join(base, "images"), base, fetch.New("scryfall-images"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cache
}

func TestFileName(t *testing.T) {
	cases := []struct {
		set, number string
		face        int
		ext         string
		want        string
	}{
		{"NEM", "27", 0, ".png", "nem_27.png"},
		{"ISD", "51", 1, ".jpg", "isd_51_face2.jpg"},
		{"PLST", "ZEN/12", 0, "", "plst_zen-12.png"},
	}
	for _, tc := range cases {
		if got := imagecache.FileName(tc.set, tc.number, tc.face, tc.ext); got != tc.want {
			t.Errorf("FileName(%q,%q,%d,%q) = %q, want %q", tc.set, tc.number, tc.face, tc.ext, got, tc.want)
		}
	}
}

func TestStoreDownloadsOnce(t *testing.T) {
	srv := newImageServer(t)
	base := t.TempDir()
	cache := newCache(t, base)
	c := card.Canonical{EnglishName: "Aether Barrier", SetCode: "NEM", CollectorNumber: "27", ImageURL: srv.URL + "/nem/27.png?1562"}

	first, err := cache.Store(context.Background(), c, false)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	second, err := cache.Store(context.Background(), c, false)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if first.Downloaded != 1 || second.Downloaded != 0 {
		t.Fatalf("unexpected download counts %d, %d", first.Downloaded, second.Downloaded)
	}
	if srv.hits.Load() != 1 {
		t.Fatalf("expected one network download, got %d", srv.hits.Load())
	}
	if diff := cmp.Diff([]string{"images/nem_27.png"}, second.Paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(filepath.Join(base, "images", "nem_27.png"))
	if err != nil || string(data) != "image:/nem/27.png" {
		t.Fatalf("unexpected image content %q, %v", data, err)
	}
}

func TestStoreForceRedownloads(t *testing.T) {
	srv := newImageServer(t)
	cache := newCache(t, t.TempDir())
	c := card.Canonical{SetCode: "NEM", CollectorNumber: "27", ImageURL: srv.URL + "/a.png"}

	for i := 0; i < 2; i++ {
		res, err := cache.Store(context.Background(), c, true)
		if err != nil {
			t.Fatalf("Store: %v", err)
		}
		if res.Downloaded != 1 {
			t.Fatalf("expected forced download, got %d", res.Downloaded)
		}
	}
	if srv.hits.Load() != 2 {
		t.Fatalf("expected two downloads, got %d", srv.hits.Load())
	}
}

func TestStoreMultiFace(t *testing.T) {
	srv := newImageServer(t)
	cache := newCache(t, t.TempDir())
	c := card.Canonical{
		SetCode:         "ISD",
		CollectorNumber: "51",
		Faces: []card.Face{
			{Name: "Delver of Secrets", ImageURL: srv.URL + "/front.jpg"},
			{Name: "Insectile Aberration", ImageURL: srv.URL + "/back.jpg"},
		},
	}
	res, err := cache.Store(context.Background(), c, false)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if diff := cmp.Diff([]string{"images/isd_51.jpg", "images/isd_51_face2.jpg"}, res.Paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	if res.Downloaded != 2 {
		t.Fatalf("expected two downloads, got %d", res.Downloaded)
	}
}

func TestStoreConcurrentCallersShareDownload(t *testing.T) {
	srv := newImageServer(t)
	cache := newCache(t, t.TempDir())
	c := card.Canonical{SetCode: "NEM", CollectorNumber: "27", ImageURL: srv.URL + "/a.png"}

	var (
		wg    sync.WaitGroup
		total atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := cache.Store(context.Background(), c, false)
			if err != nil {
				t.Errorf("Store: %v", err)
				return
			}
			total.Add(int32(res.Downloaded))
		}()
	}
	wg.Wait()
	if total.Load() != int32(srv.hits.Load()) {
		t.Fatalf("download count %d does not match network hits %d", total.Load(), srv.hits.Load())
	}
}

func TestStoreDownloadFailure(t *testing.T) {
	srv := newImageServer(t)
	cache := newCache(t, t.TempDir())
	c := card.Canonical{SetCode: "NEM", CollectorNumber: "27", ImageURL: srv.URL + "/missing.png"}

	_, err := cache.Store(context.Background(), c, false)
	if services.KindOf(err) != services.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreWriteFailureIsStorageError(t *testing.T) {
	srv := newImageServer(t)
	base := t.TempDir()
	blocker := filepath.Join(base, "images")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	cache := newCache(t, base)
	c := card.Canonical{SetCode: "NEM", CollectorNumber: "27", ImageURL: srv.URL + "/a.png"}

	_, err := cache.Store(context.Background(), c, false)
	if !services.IsFatal(err) || services.KindOf(err) != services.KindStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestStoreWithoutImage(t *testing.T) {
	cache := newCache(t, t.TempDir())
	res, err := cache.Store(context.Background(), card.Canonical{SetCode: "NEM", CollectorNumber: "27"}, false)
	if err != nil || len(res.Paths) != 0 {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
}
