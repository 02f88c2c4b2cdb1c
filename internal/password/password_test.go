package password

import (
	"strings"
	"testing"
)

func TestGenerateLength(t *testing.T) {
	for _, n := range []int{4, 8, 12, 32} {
		if got := len(Generate(n)); got != n {
			t.Fatalf("Generate(%d): длина %d", n, got)
		}
	}
}

func TestGenerateTooShortFallsBackToDefault(t *testing.T) {
	for _, n := range []int{-1, 0, 3} {
		if got := len(Generate(n)); got != DefaultLength {
			t.Fatalf("Generate(%d): длина %d, ожидалась %d", n, got, DefaultLength)
		}
	}
}

func TestGenerateContainsAllClasses(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := Generate(DefaultLength)
		for _, set := range []string{upper, lower, digits, special} {
			if !strings.ContainsAny(p, set) {
				t.Fatalf("пароль %q без символов из %q", p, set)
			}
		}
	}
}

func TestGenerateNotConstant(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[Generate(DefaultLength)] = true
	}
	if len(seen) < 2 {
		t.Fatal("генератор выдаёт одно и то же значение")
	}
}
