package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`pages: [{url: "https://example.com"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Browser.Stealth != "headful" || cfg.Browser.XvfbDisplay != ":99" {
		t.Errorf("browser = %+v", cfg.Browser)
	}
	if len(cfg.Chord.Sequence) != 4 || cfg.Chord.Timeout != time.Second {
		t.Errorf("chord = %+v", cfg.Chord)
	}
	if cfg.Locate.MinChars != 100 || cfg.DB.Path != "tldr.db" || cfg.Options.Addr != "127.0.0.1:8787" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Pages[0].ID != "page-1" {
		t.Errorf("page id = %q", cfg.Pages[0].ID)
	}
}

func TestLoadFile(t *testing.T) {
	yml := `
browser:
  stealth: headless
  resource_blocking: [images, fonts]
chord:
  sequence: [s, u, m]
  timeout: 1500ms
sites:
  - name: forum
    hosts: [forum.example.org]
    container: "div.post"
language: fr-FR
providers:
  openai_url: http://127.0.0.1:9000/v1/chat/completions
  timeout: 10s
`
	path := filepath.Join(t.TempDir(), "tldr.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Browser.Stealth != "headless" || len(cfg.Browser.ResourceBlocking) != 2 {
		t.Errorf("browser = %+v", cfg.Browser)
	}
	if cfg.Chord.Timeout != 1500*time.Millisecond || cfg.Chord.Sequence[2] != "m" {
		t.Errorf("chord = %+v", cfg.Chord)
	}
	if len(cfg.Sites) != 1 || cfg.Sites[0].Container != "div.post" {
		t.Errorf("sites = %+v", cfg.Sites)
	}
	if cfg.Language != "fr-FR" || cfg.Providers.Timeout != 10*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		`browser: {stealth: invisible}`,
		`sites: [{name: x, hosts: [a.com]}]`,
		`pages: [{id: p}]`,
		`pages: [{url: "javascript:alert(1)"}]`,
		`pages: [{url: "file:///etc/passwd"}]`,
		`pages: [{url: "https://"}]`,
		`providers: {openai_url: "ftp://proxy.local/v1"}`,
		`providers: {anthropic_url: "/v1/messages"}`,
		`chord: [`,
	}
	for _, in := range tests {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}
