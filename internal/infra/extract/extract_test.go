package extract_test

import (
	"strings"
	"testing"

	"github.com/ossfeed/coordinator/internal/infra/extract"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<head><title>Understanding Leases</title></head>
<body>
  <article>
    <h1>Understanding Leases</h1>
    <p>A lease is a transient claim on a unit of work, identified by the
    holder and the time it was acquired. It expires after a fixed window,
    which is the only recovery path for a crashed holder.</p>
    <p>Compare-and-set acquisition guarantees that two concurrent claimants
    cannot both hold the same lease. The loser observes a conflict and is
    expected to move on to the next candidate.</p>
    <p>See the <a href="/docs/scheduling">scheduling notes</a> and the
    <a href="/docs/recovery">recovery notes</a> for details.</p>
    <img src="/diagrams/lease.png" alt="lease diagram">
    <iframe src="https://player.example.com/embed/123"></iframe>
  </article>
</body>
</html>`

func TestDeriver_DeriveText(t *testing.T) {
	text, err := extract.Deriver{}.DeriveText(sampleHTML, "https://example.com/posts/leases")
	if err != nil {
		t.Fatalf("DeriveText() error = %v", err)
	}
	if !strings.Contains(text, "transient claim on a unit of work") {
		t.Errorf("derived text missing article body, got %q", text)
	}
	if strings.Contains(text, "<p>") {
		t.Errorf("derived text still contains markup: %q", text)
	}
}

func TestDeriver_CountMedia(t *testing.T) {
	images, links, videos, err := extract.Deriver{}.CountMedia(sampleHTML)
	if err != nil {
		t.Fatalf("CountMedia() error = %v", err)
	}
	if images != 1 {
		t.Errorf("images = %d, want 1", images)
	}
	if links != 2 {
		t.Errorf("links = %d, want 2", links)
	}
	if videos != 1 {
		t.Errorf("videos = %d, want 1", videos)
	}
}
