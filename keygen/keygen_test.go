package keygen

import (
	"strings"
	"testing"
)

func TestNamespace(t *testing.T) {
	t.Parallel()

	cases := []struct {
		file string
		want string
	}{
		{"src/LoginForm.vue", "loginForm"},
		{"src/components/user-profile.jsx", "userProfile"},
		{"app/pages/index.tsx", "index"},
		{"src/CTAButton.tsx", "ctaButton"},
		{"src/页面.vue", "misc"},
	}
	for _, tc := range cases {
		if got := Namespace(tc.file); got != tc.want {
			t.Errorf("Namespace(%q) = %q, want %q", tc.file, got, tc.want)
		}
	}
}

func TestKeyDeterministic(t *testing.T) {
	t.Parallel()

	g := New("")
	first, err := g.Key("src/LoginForm.vue", "Sign in to your account")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if first != "loginForm.signInToYourAccount" {
		t.Fatalf("key = %q, want loginForm.signInToYourAccount", first)
	}
	again, err := g.Key("src/LoginForm.vue", "Sign in to your account")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if again != first {
		t.Fatalf("repeat key = %q, want %q", again, first)
	}
}

func TestKeyPrefix(t *testing.T) {
	t.Parallel()

	g := New("app.")
	key, err := g.Key("src/Nav.vue", "Home")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if key != "app.nav.home" {
		t.Fatalf("key = %q, want app.nav.home", key)
	}
}

func TestKeyCollisionSuffix(t *testing.T) {
	t.Parallel()

	g := New("")
	// Both texts slug to the same words once punctuation is dropped.
	a, err := g.Key("src/Alerts.jsx", "Saved!")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	b, err := g.Key("src/Alerts.jsx", "Saved?")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if a != "alerts.saved" {
		t.Fatalf("first key = %q, want alerts.saved", a)
	}
	if !strings.HasPrefix(b, "alerts.saved.") {
		t.Fatalf("collided key = %q, want digest suffix segment", b)
	}
	suffix := strings.TrimPrefix(b, "alerts.saved.")
	if len(suffix) != 6 {
		t.Fatalf("suffix = %q, want 6 hex chars", suffix)
	}

	// The collided text keeps its suffixed key on repeat.
	again, err := g.Key("src/Alerts.jsx", "Saved?")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if again != b {
		t.Fatalf("repeat collided key = %q, want %q", again, b)
	}
}

func TestKeyHashLengthOverride(t *testing.T) {
	t.Parallel()

	g := New("")
	g.SetHashLength(10)
	if _, err := g.Key("src/Alerts.jsx", "Saved!"); err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	b, err := g.Key("src/Alerts.jsx", "Saved?")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	suffix := strings.TrimPrefix(b, "alerts.saved.")
	if len(suffix) != 10 {
		t.Fatalf("suffix = %q, want 10 hex chars", suffix)
	}

	// Out-of-range overrides are ignored.
	g2 := New("")
	g2.SetHashLength(99)
	if _, err := g2.Key("src/Alerts.jsx", "Saved!"); err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	c, err := g2.Key("src/Alerts.jsx", "Saved?")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if got := strings.TrimPrefix(c, "alerts.saved."); len(got) != 6 {
		t.Fatalf("suffix = %q, want default 6 hex chars", got)
	}
}

func TestKeySeedReuse(t *testing.T) {
	t.Parallel()

	g := New("")
	g.Seed(map[string]string{
		"loginForm.continue": "Continue",
	})
	key, err := g.Key("src/LoginForm.vue", "Continue")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if key != "loginForm.continue" {
		t.Fatalf("key = %q, want the seeded key reused", key)
	}
}

func TestKeySeedCollision(t *testing.T) {
	t.Parallel()

	g := New("")
	g.Seed(map[string]string{
		"nav.home": "Homepage",
	})
	key, err := g.Key("src/Nav.vue", "Home")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if key == "nav.home" {
		t.Fatalf("key = %q collides with a seeded key owned by other text", key)
	}
	if !strings.HasPrefix(key, "nav.home.") {
		t.Fatalf("key = %q, want digest suffix under nav.home", key)
	}
}

func TestKeyNonLatinFallsBackToDigest(t *testing.T) {
	t.Parallel()

	g := New("")
	key, err := g.Key("src/Nav.vue", "ようこそ")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if !strings.HasPrefix(key, "nav.") {
		t.Fatalf("key = %q, want nav namespace", key)
	}
	slug := strings.TrimPrefix(key, "nav.")
	if len(slug) != 8 {
		t.Fatalf("slug = %q, want 8 digest chars", slug)
	}
}
