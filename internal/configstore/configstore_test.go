package configstore

import "testing"

func fixedKey() ([]byte, error) {
	return make([]byte, 32), nil
}

func TestSetGetMerge(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, fixedKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Set("jupiter_api_key", "abc123", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("strategy", "balanced", true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	values, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if values["jupiter_api_key"] != "abc123" || values["strategy"] != "balanced" {
		t.Fatalf("unexpected values: %+v", values)
	}

	if err := s.Set("only", "this", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	values, _ = s.Get()
	if len(values) != 1 || values["only"] != "this" {
		t.Fatalf("expected merge=false to clear other keys, got %+v", values)
	}
}

func TestPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	s1, err := New(dir, fixedKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s1.Set("rpc_url", "https://example.com", true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s2, err := New(dir, fixedKey)
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	values, _ := s2.Get()
	if values["rpc_url"] != "https://example.com" {
		t.Fatalf("expected persisted value, got %+v", values)
	}
}

func TestMaskedPreviewRedactsSecrets(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, fixedKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = s.Set("jupiter_api_key", "sk-1234567890", true)
	_ = s.Set("strategy", "balanced", true)

	preview := s.MaskedPreview()
	if preview["strategy"] != "balanced" {
		t.Fatalf("non-secret value should not be masked, got %q", preview["strategy"])
	}
	if preview["jupiter_api_key"] == "sk-1234567890" {
		t.Fatal("secret value should be masked")
	}
}

func TestRPCURLProviders(t *testing.T) {
	cases := []struct {
		provider RPCProvider
		base     string
		key      string
		want     string
	}{
		{ProviderHelius, "https://rpc.helius.xyz", "KEY", "https://rpc.helius.xyz?api-key=KEY"},
		{ProviderCustom, "https://my-rpc.example.com", "KEY", "https://my-rpc.example.com?api_key=KEY"},
		{ProviderQuicknode, "https://my-node.quiknode.pro", "KEY", "https://my-node.quiknode.pro/KEY"},
	}
	for _, c := range cases {
		got, err := RPCURL(c.provider, c.base, c.key)
		if err != nil {
			t.Errorf("RPCURL(%v, %q): %v", c.provider, c.base, err)
			continue
		}
		if got != c.want {
			t.Errorf("RPCURL(%v, %q) = %q, want %q", c.provider, c.base, got, c.want)
		}
	}
}

func TestRPCURLQuicknodeRejectsWrongHost(t *testing.T) {
	if _, err := RPCURL(ProviderQuicknode, "https://example.com", "KEY"); err == nil {
		t.Fatal("expected error for non-quicknode host")
	}
}
