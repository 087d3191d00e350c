package handshake

import "testing"

func TestParseIDList(t *testing.T) {
	cases := []struct {
		name      string
		content   string
		want      []int
		expectErr bool
	}{
		{name: "multiple lines", content: "3\n7\n11\n", want: []int{3, 7, 11}},
		{name: "single scalar", content: "42", want: []int{42}},
		{name: "space separated", content: " 1 2  3 ", want: []int{1, 2, 3}},
		{name: "empty", content: "\n", expectErr: true},
		{name: "non numeric", content: "3 seven", expectErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ids, err := ParseIDList(tc.content)
			if tc.expectErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, ids)
			}
			for i := range tc.want {
				if ids[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, ids)
				}
			}
		})
	}
}

func TestFormatIDListRoundTrip(t *testing.T) {
	ids := []int{5, 9}
	parsed, err := ParseIDList(FormatIDList(ids))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 2 || parsed[0] != 5 || parsed[1] != 9 {
		t.Fatalf("expected [5 9], got %v", parsed)
	}
}
