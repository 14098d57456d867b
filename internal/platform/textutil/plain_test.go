package textutil

import "testing"

func TestPlainText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "Excelente servicio", want: "Excelente servicio"},
		{name: "markup removed", input: "<b>Muy</b> bueno<script>alert(1)</script>", want: "Muy bueno"},
		{name: "entities kept readable", input: "Frenos & pastillas", want: "Frenos & pastillas"},
		{name: "whitespace collapsed", input: "  dos \n\t lineas  ", want: "dos lineas"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := PlainText(tc.input); got != tc.want {
				t.Fatalf("PlainText(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
