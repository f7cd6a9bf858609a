package vocab

import "testing"

func TestNewRepoPathRoot(t *testing.T) {
	p := NewRepoPath("")
	if !p.IsRoot() {
		t.Errorf("empty string should parse to the root path")
	}
	if p.String() != "" {
		t.Errorf("root path should render as empty string, got %q", p.String())
	}
}

func TestNewRepoPathComponents(t *testing.T) {
	p := NewRepoPath("foo/bar/baz.txt")
	comps := p.Components()
	want := []PathComponent{"foo", "bar", "baz.txt"}
	if len(comps) != len(want) {
		t.Fatalf("got %d components, want %d", len(comps), len(want))
	}
	for i := range want {
		if comps[i] != want[i] {
			t.Errorf("component %d = %q, want %q", i, comps[i], want[i])
		}
	}
	if p.Basename() != "baz.txt" {
		t.Errorf("Basename() = %q, want baz.txt", p.Basename())
	}
	if p.Dirname().String() != "foo/bar" {
		t.Errorf("Dirname() = %q, want foo/bar", p.Dirname().String())
	}
}

func TestNewRepoPathCollapsesSlashes(t *testing.T) {
	p := NewRepoPath("/foo//bar/")
	if p.String() != "foo/bar" {
		t.Errorf("String() = %q, want foo/bar", p.String())
	}
}

func TestJoin(t *testing.T) {
	p := NewRepoPath("foo").Join("bar")
	if p.String() != "foo/bar" {
		t.Errorf("Join produced %q, want foo/bar", p.String())
	}
}

func TestHasBookkeepingRootComponent(t *testing.T) {
	if !NewRepoPath("_MTN/revision").HasBookkeepingRootComponent() {
		t.Errorf("expected _MTN component to be detected")
	}
	if NewRepoPath("src/main.go").HasBookkeepingRootComponent() {
		t.Errorf("did not expect a bookkeeping component")
	}
}
