package config

import "testing"

func TestGetEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("THUMBNAILER_TEST_UNSET", "")
	if got := getEnv("THUMBNAILER_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("getEnv = %q, want %q", got, "fallback")
	}

	t.Setenv("THUMBNAILER_TEST_SET", "value")
	if got := getEnv("THUMBNAILER_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("getEnv = %q, want %q", got, "value")
	}
}

func TestGetEnvIntRejectsNonPositiveAndInvalid(t *testing.T) {
	cases := []struct {
		value string
		want  int
	}{
		{"", 42},
		{"not-a-number", 42},
		{"-5", 42},
		{"0", 42},
		{"7", 7},
	}
	for _, tc := range cases {
		t.Setenv("THUMBNAILER_TEST_INT", tc.value)
		if got := getEnvInt("THUMBNAILER_TEST_INT", 42); got != tc.want {
			t.Errorf("getEnvInt(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
}

func TestDefaultExtractionLimitIsAtLeastOne(t *testing.T) {
	if defaultExtractionLimit() < 1 {
		t.Fatal("defaultExtractionLimit must never return less than 1")
	}
}

func TestLoadAppliesDefaultsWithoutEnv(t *testing.T) {
	cfg := Load()
	if cfg.MaxSize != 1920 {
		t.Errorf("MaxSize = %d, want 1920", cfg.MaxSize)
	}
	if cfg.CredentialsCacheSize != 1024 {
		t.Errorf("CredentialsCacheSize = %d, want 1024", cfg.CredentialsCacheSize)
	}
	if cfg.ImagePerEntryCap != cfg.ImageCacheBytes/8 {
		t.Errorf("ImagePerEntryCap = %d, want capacity/8 = %d", cfg.ImagePerEntryCap, cfg.ImageCacheBytes/8)
	}
}
