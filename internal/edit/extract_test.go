package edit

import "testing"

func TestExtractFenced(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
		ok    bool
	}{
		{"python fence", "Sure! ```python\ndf['x']=1\n```", "df['x']=1", true},
		{"bare fence", "```\ndf['y'] = 2\n```\nDone.", "df['y'] = 2", true},
		{"starlark fence", "```starlark\ndf = df.head(1)\n```", "df = df.head(1)", true},
		{"first block wins", "```python\na = 1\n```\n```python\nb = 2\n```", "a = 1", true},
		{"unknown info string", "```pythonic\ndf['x']=1\n```", "df['x']=1", true},
		{"other language", "```sql\nselect 1\n```", "select 1", true},
		{"info string with attributes", "```python title=edit.py\ndf['x']=1\n```", "df['x']=1", true},
		{"one line with tag", "```python df['x']=1```", "df['x']=1", true},
		{"one line without tag", "```df['x']=1```", "df['x']=1", true},
		{"one line name starting like a tag", "```pyramid = 1```", "pyramid = 1", true},
		{"no fence", "df['x'] = 1", "", false},
		{"unterminated", "```python\ndf['x'] = 1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractFenced(tt.reply)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractFenced(%q) = %q, %v; want %q, %v", tt.reply, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStripMarkers(t *testing.T) {
	if got := StripMarkers("```python\ndf['x'] = 1"); got != "df['x'] = 1" {
		t.Errorf("StripMarkers = %q", got)
	}
	if got := StripMarkers("  df['x'] = 1  "); got != "df['x'] = 1" {
		t.Errorf("StripMarkers without markers = %q", got)
	}
}

func TestExtractFragmentTiers(t *testing.T) {
	f := ExtractFragment("Sure! ```python\ndf['x']=1\n```")
	if !f.Fenced || f.Code != "df['x']=1" {
		t.Errorf("fenced tier = %+v", f)
	}

	f = ExtractFragment("df['x'] = 1\n```")
	if f.Fenced || f.Code != "df['x'] = 1" {
		t.Errorf("fallback tier = %+v", f)
	}
}
