package transform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keylift/keylift/adapter"
	"github.com/keylift/keylift/keygen"
	"github.com/keylift/keylift/react"
	"github.com/keylift/keylift/report"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return dir
}

func newPipeline(root string, opts Options) *Pipeline {
	opts.Roots = []string{filepath.Join(root, "src")}
	return New(adapter.NewRegistry(react.New(react.Options{})), opts)
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

func TestDiscoverSkipsDirsAndUnhandledFiles(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/App.jsx":               "export const A = () => <p>Hi</p>;",
		"src/pages/Nav.tsx":         "export const N = () => <p>Nav</p>;",
		"src/node_modules/Dep.jsx":  "export const D = () => <p>Dep</p>;",
		"src/dist/Out.jsx":          "export const O = () => <p>Out</p>;",
		"src/generated/.next/G.jsx": "export const G = () => <p>G</p>;",
		"src/notes.md":              "# not source",
		"src/styles/theme.css":      "body {}",
	})

	p := newPipeline(dir, Options{})
	files, err := p.Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []string{
		filepath.Join(dir, "src/App.jsx"),
		filepath.Join(dir, "src/pages/Nav.tsx"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestDiscoverIgnorePatterns(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/App.jsx":         "export const A = () => <p>Hi</p>;",
		"src/App.stories.jsx": "export const S = () => <p>Story</p>;",
		"src/legacy/Old.jsx":  "export const O = () => <p>Old</p>;",
	})

	p := newPipeline(dir, Options{Ignore: []string{"legacy", "*.stories.jsx"}})
	files, err := p.Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || !strings.HasSuffix(files[0], "App.jsx") {
		t.Fatalf("files = %v, want just App.jsx", files)
	}
}

func TestRunExtractsAndMutates(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/Greeting.jsx": "export const Greeting = () => (\n" +
			"  <div>\n" +
			"    <h1>Hello world</h1>\n" +
			"    <input placeholder=\"Your name\" />\n" +
			"  </div>\n" +
			");\n",
	})

	p := newPipeline(dir, Options{})
	var rep report.Collector
	out, err := p.Run(context.Background(), keygen.New(""), &rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.Accepted) != 2 {
		t.Fatalf("accepted = %d, want 2: %+v", len(out.Accepted), out.Accepted)
	}
	keys := map[string]string{}
	for _, tc := range out.Accepted {
		keys[tc.Key] = tc.Default
	}
	if keys["greeting.helloWorld"] != "Hello world" {
		t.Fatalf("keys = %v, want greeting.helloWorld -> Hello world", keys)
	}
	if keys["greeting.yourName"] != "Your name" {
		t.Fatalf("keys = %v, want greeting.yourName -> Your name", keys)
	}

	if len(out.Mutated) != 1 {
		t.Fatalf("mutated = %v, want one file", out.Mutated)
	}
	got := readBack(t, filepath.Join(dir, "src/Greeting.jsx"))
	if !strings.Contains(got, "{t('greeting.helloWorld')}") {
		t.Fatalf("text node not rewritten:\n%s", got)
	}
	if !strings.Contains(got, "placeholder={t('greeting.yourName')}") {
		t.Fatalf("attribute not rewritten:\n%s", got)
	}
	if rep.HasErrors() {
		t.Fatalf("unexpected errors: %+v", rep.Items())
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	src := "export const Hello = () => <h1>Hello world</h1>;\n"
	dir := writeTree(t, map[string]string{"src/Hello.jsx": src})

	p := newPipeline(dir, Options{DryRun: true})
	var rep report.Collector
	out, err := p.Run(context.Background(), keygen.New(""), &rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.Accepted) != 1 {
		t.Fatalf("accepted = %+v, want one candidate", out.Accepted)
	}
	if len(out.Mutated) != 0 {
		t.Fatalf("dry run mutated %v", out.Mutated)
	}
	if got := readBack(t, filepath.Join(dir, "src/Hello.jsx")); got != src {
		t.Fatalf("dry run changed the file:\n%s", got)
	}
}

func TestRunUnsafeBecomesWarning(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/Count.jsx": "export const Count = ({n}) => <span>{n === 1 ? 'item' : 'items'}</span>;\n",
	})

	p := newPipeline(dir, Options{})
	var rep report.Collector
	out, err := p.Run(context.Background(), keygen.New(""), &rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.Accepted) != 0 {
		t.Fatalf("accepted = %+v, want none", out.Accepted)
	}
	if len(out.Mutated) != 0 {
		t.Fatalf("mutated = %v, want none", out.Mutated)
	}
	var warned bool
	for _, it := range rep.Items() {
		if it.Kind == report.KindUnsafeCandidate && it.Severity == report.Warning {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("no unsafe-candidate warning: %+v", rep.Items())
	}
}

func TestRunSecondPassFindsNothingNew(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/Hello.jsx": "export const Hello = () => <h1>Hello world</h1>;\n",
	})

	p := newPipeline(dir, Options{})
	var rep report.Collector
	first, err := p.Run(context.Background(), keygen.New(""), &rep)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if len(first.Accepted) != 1 || len(first.Mutated) != 1 {
		t.Fatalf("first run = %+v", first)
	}
	afterFirst := readBack(t, filepath.Join(dir, "src/Hello.jsx"))

	gen := keygen.New("")
	gen.Seed(map[string]string{first.Accepted[0].Key: first.Accepted[0].Default})
	second, err := p.Run(context.Background(), gen, &rep)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(second.Accepted) != 0 {
		t.Fatalf("second run accepted %+v", second.Accepted)
	}
	if len(second.Mutated) != 0 {
		t.Fatalf("second run mutated %v", second.Mutated)
	}
	var found bool
	for _, ref := range second.Refs {
		if ref.Key == first.Accepted[0].Key {
			found = true
		}
	}
	if !found {
		t.Fatalf("second run did not report the key as a reference: %+v", second.Refs)
	}
	if got := readBack(t, filepath.Join(dir, "src/Hello.jsx")); got != afterFirst {
		t.Fatalf("second run changed the file again:\n%s", got)
	}
}

func TestRunParseFailureContinues(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/Good.jsx": "export const Good = () => <h1>Hello world</h1>;\n",
	})
	bad := filepath.Join(dir, "src/Bad.jsx")
	if err := os.WriteFile(bad, []byte{0xff, 0xfe, 0x00, 0x80}, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := newPipeline(dir, Options{})
	var rep report.Collector
	out, err := p.Run(context.Background(), keygen.New(""), &rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var parseErrs int
	for _, it := range rep.Items() {
		if it.Kind == report.KindParseFailure && it.Severity == report.Error {
			parseErrs++
			if !strings.HasSuffix(it.File, "Bad.jsx") {
				t.Fatalf("parse failure on %q, want Bad.jsx", it.File)
			}
		}
	}
	if parseErrs != 1 {
		t.Fatalf("parse failures = %d, want 1", parseErrs)
	}
	if len(out.Mutated) != 1 || !strings.HasSuffix(out.Mutated[0], "Good.jsx") {
		t.Fatalf("mutated = %v, want Good.jsx", out.Mutated)
	}
}

func TestRunCanceledContextStops(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/Hello.jsx": "export const Hello = () => <h1>Hello world</h1>;\n",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(dir, Options{})
	var rep report.Collector
	_, err := p.Run(ctx, keygen.New(""), &rep)
	if err == nil {
		t.Fatalf("Run with canceled context returned nil error")
	}
}

func TestRunPreservesFileMode(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/Hello.jsx": "export const Hello = () => <h1>Hello world</h1>;\n",
	})
	path := filepath.Join(dir, "src/Hello.jsx")
	if err := os.Chmod(path, 0600); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	p := newPipeline(dir, Options{})
	var rep report.Collector
	if _, err := p.Run(context.Background(), keygen.New(""), &rep); err != nil {
		t.Fatalf("Run: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0600 {
		t.Fatalf("mode = %o, want 0600", got)
	}
}
