package callbacks

import "testing"

func TestParseData(t *testing.T) {
	cases := []struct {
		raw, key, payload string
	}{
		{"start_3", "start", "3"},
		{"delete_0", "delete", "0"},
		{"end_meditation", "end", "meditation"},
		{"cat_deep_sleep", "cat", "deep_sleep"},
		{"list_", "list", ""},
		{"\fmenu|page2", "menu", "page2"},
		{"\fmenu", "menu", ""},
		{"\fstart|3", "start", "3"},
		{" \fdelete|0\n", "delete", "0"},
		{"plain", "plain", ""},
	}
	for _, tc := range cases {
		key, payload := ParseData(tc.raw)
		if key != tc.key || payload != tc.payload {
			t.Fatalf("ParseData(%q) = %q, %q; want %q, %q", tc.raw, key, payload, tc.key, tc.payload)
		}
	}
	if got := Data("start", "12"); got != "start_12" {
		t.Fatalf("Data = %q", got)
	}
}
