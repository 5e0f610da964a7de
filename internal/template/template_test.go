package template

import "testing"

func TestGet_ReactTemplate(t *testing.T) {
	tmpl, ok := Get("react")
	if !ok {
		t.Fatal("react template missing from registry")
	}

	// The react starter ships exactly these files; project creation and the
	// editor's initial file tree both depend on them.
	want := map[string]string{
		"package.json": "json",
		"src/App.jsx":  "javascript",
		"src/App.css":  "css",
	}
	if len(tmpl.Files) != len(want) {
		t.Fatalf("react template has %d files, want %d", len(tmpl.Files), len(want))
	}
	for _, f := range tmpl.Files {
		lang, ok := want[f.Path]
		if !ok {
			t.Errorf("unexpected file %q in react template", f.Path)
			continue
		}
		if f.Language != lang {
			t.Errorf("%s language = %q, want %q", f.Path, f.Language, lang)
		}
		if f.Content == "" {
			t.Errorf("%s has empty content", f.Path)
		}
	}
}

func TestGet_UnknownTemplate(t *testing.T) {
	if _, ok := Get("fortran-enterprise"); ok {
		t.Error("Get() returned ok for an unknown template")
	}
}

func TestNames_SortedAndComplete(t *testing.T) {
	names := Names()
	if len(names) == 0 {
		t.Fatal("Names() returned nothing")
	}
	for i := 1; i < len(names); i++ {
		if names[i] < names[i-1] {
			t.Errorf("Names() not sorted: %q before %q", names[i-1], names[i])
		}
	}
	for _, name := range names {
		if _, ok := Get(name); !ok {
			t.Errorf("Names() lists %q but Get() can't find it", name)
		}
	}
}
