package cmd

import "testing"

func TestParseCanvas(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		width   int
		height  int
		wantErr bool
	}{
		{name: "standard", input: "1024x768", width: 1024, height: 768},
		{name: "uppercase separator", input: "640X480", width: 640, height: 480},
		{name: "whitespace tolerated", input: " 800 x 600 ", width: 800, height: 600},
		{name: "missing separator", input: "1024", wantErr: true},
		{name: "non-numeric width", input: "widex768", wantErr: true},
		{name: "non-numeric height", input: "1024xtall", wantErr: true},
		{name: "zero dimension", input: "0x768", wantErr: true},
		{name: "negative dimension", input: "1024x-1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			width, height, err := parseCanvas(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected an error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if width != tt.width || height != tt.height {
				t.Errorf("Expected %dx%d, got %dx%d", tt.width, tt.height, width, height)
			}
		})
	}
}

func TestRunCmdDefaultCanvas(t *testing.T) {
	flag := newRunCmd().Flags().Lookup("canvas")
	if flag == nil {
		t.Fatal("Expected a --canvas flag")
	}
	if flag.DefValue != "1024x1024" {
		t.Errorf("Expected default canvas 1024x1024, got %q", flag.DefValue)
	}
}

func TestSplitProviderNames(t *testing.T) {
	t.Setenv("COLLAGER_PROVIDER", "")

	tests := []struct {
		name     string
		provider string
		curation string
		plan     string
		chat     string
	}{
		{name: "defaults", provider: "", curation: "", plan: "openai", chat: "openai"},
		{name: "ollama everywhere", provider: "ollama", curation: "", plan: "ollama", chat: "ollama"},
		{name: "gemini plans via openai", provider: "gemini", curation: "", plan: "openai", chat: "gemini"},
		{name: "explicit curation provider", provider: "openai", curation: "gemini", plan: "openai", chat: "gemini"},
		{name: "gemini planner with ollama curation", provider: "gemini", curation: "ollama", plan: "openai", chat: "ollama"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, chat := splitProviderNames(tt.provider, tt.curation)
			if plan != tt.plan || chat != tt.chat {
				t.Errorf("Expected plan=%s chat=%s, got plan=%s chat=%s", tt.plan, tt.chat, plan, chat)
			}
		})
	}

	t.Setenv("COLLAGER_PROVIDER", "gemini")
	plan, chat := splitProviderNames("", "")
	if plan != "openai" || chat != "gemini" {
		t.Errorf("Expected env gemini to plan via openai, got plan=%s chat=%s", plan, chat)
	}
}

func TestNewSearcher(t *testing.T) {
	if _, err := newSearcher("archive", ""); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if _, err := newSearcher("offline", ""); err == nil {
		t.Error("Expected offline searcher to require --dataset")
	}
	if _, err := newSearcher("webring", ""); err == nil {
		t.Error("Expected an error for an unknown searcher")
	}
}

func TestResolveProviderName(t *testing.T) {
	t.Setenv("COLLAGER_PROVIDER", "")
	if got := resolveProviderName(""); got != "openai" {
		t.Errorf("Expected openai default, got %q", got)
	}
	if got := resolveProviderName("ollama"); got != "ollama" {
		t.Errorf("Expected explicit name to win, got %q", got)
	}
	t.Setenv("COLLAGER_PROVIDER", "gemini")
	if got := resolveProviderName(""); got != "gemini" {
		t.Errorf("Expected env fallback, got %q", got)
	}
}
