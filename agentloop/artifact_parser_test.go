package agentloop

import (
	"testing"
)

func TestExtractArtifactsBasic(t *testing.T) {
	text := `Here is the implementation.

<artifact filename="src/main.rs" type="source_code">
<![CDATA[
fn main() {
    println!("hello");
}
]]>
</artifact>

And the manifest:
<artifact filename="Cargo.toml" type="configuration">
<![CDATA[
[package]
name = "hello"
]]>
</artifact>
`
	kept, skipped := ExtractArtifacts(text)
	if len(skipped) != 0 {
		t.Errorf("unexpected skipped: %+v", skipped)
	}
	if len(kept) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(kept))
	}
	if kept[0].Filename != "src/main.rs" || kept[0].Type != "source_code" {
		t.Errorf("unexpected first artifact %+v", kept[0])
	}
	want := "fn main() {\n    println!(\"hello\");\n}\n"
	if kept[0].Content != want {
		t.Errorf("content = %q, want %q", kept[0].Content, want)
	}
	if kept[1].Content != "[package]\nname = \"hello\"\n" {
		t.Errorf("content = %q", kept[1].Content)
	}
}

func TestExtractArtifactsSingleLine(t *testing.T) {
	text := `<artifact filename="VERSION.txt" type="data"><![CDATA[1.2.3]]></artifact>`
	kept, _ := ExtractArtifacts(text)
	if len(kept) != 1 || kept[0].Content != "1.2.3\n" {
		t.Fatalf("unexpected result %+v", kept)
	}
}

func TestExtractArtifactsPreservesBlankLines(t *testing.T) {
	text := "<artifact filename=\"a.py\" type=\"source_code\">\n<![CDATA[\nimport os\n\n\ndef f():\n    pass\n]]>\n</artifact>"
	kept, _ := ExtractArtifacts(text)
	if len(kept) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(kept))
	}
	if kept[0].Content != "import os\n\n\ndef f():\n    pass\n" {
		t.Errorf("content = %q", kept[0].Content)
	}
}

func TestExtractArtifactsDropsShortShellCommands(t *testing.T) {
	text := `Run the tests with:
<artifact filename="run_tests.sh" type="script">
<![CDATA[
cargo build
cargo test
]]>
</artifact>
`
	kept, skipped := ExtractArtifacts(text)
	if len(kept) != 0 {
		t.Fatalf("expected no artifacts, got %+v", kept)
	}
	if len(skipped) != 1 || skipped[0].Reason != "shell command block" {
		t.Errorf("unexpected skipped %+v", skipped)
	}
}

func TestExtractArtifactsKeepsRealScripts(t *testing.T) {
	text := `<artifact filename="deploy.sh" type="script">
<![CDATA[
#!/bin/bash
set -euo pipefail
for host in "$@"; do
  scp build/app "$host":/srv/app
  ssh "$host" systemctl restart app
done
]]>
</artifact>`
	kept, _ := ExtractArtifacts(text)
	if len(kept) != 1 {
		t.Fatalf("expected the script to be kept, got %d", len(kept))
	}
}

func TestExtractArtifactsExclusions(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{
			"placeholder comment",
			"<artifact filename=\"lib.rs\" type=\"source_code\">\n<![CDATA[\n// Your code here\nfn f() {}\n]]>\n</artifact>",
			"placeholder content",
		},
		{
			"template markdown",
			"<artifact filename=\"README.md\" type=\"documentation\">\n<![CDATA[\n# Project\n\nPlease specify the actual project name.\n]]>\n</artifact>",
			"template markdown",
		},
		{
			"pipe one-liner",
			"<artifact filename=\"count.sh\" type=\"script\">\n<![CDATA[\nfind . -name '*.rs' | wc -l\n]]>\n</artifact>",
			"shell command block",
		},
		{
			"missing cdata",
			"<artifact filename=\"x.go\" type=\"source_code\">\npackage x\n</artifact>",
			"missing CDATA section",
		},
		{
			"unterminated",
			"<artifact filename=\"x.go\" type=\"source_code\">\n<![CDATA[\npackage x\n",
			"unterminated block",
		},
		{
			"no filename",
			"<artifact type=\"source_code\">\n<![CDATA[\npackage x\n]]>\n</artifact>",
			"missing filename",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, skipped := ExtractArtifacts(tt.text)
			if len(kept) != 0 {
				t.Fatalf("expected nothing kept, got %+v", kept)
			}
			if len(skipped) != 1 || skipped[0].Reason != tt.reason {
				t.Errorf("skipped = %+v, want reason %q", skipped, tt.reason)
			}
		})
	}
}

func TestExtractArtifactsIgnoresPlainFences(t *testing.T) {
	text := "```bash\ncargo test\n```\n"
	kept, skipped := ExtractArtifacts(text)
	if len(kept) != 0 || len(skipped) != 0 {
		t.Errorf("fenced code without artifact tags should be ignored, got %+v %+v", kept, skipped)
	}
}
