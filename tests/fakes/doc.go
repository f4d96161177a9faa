// Package fakes provides test doubles for dsvault interfaces.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior. FakeBackend is an in-memory stand-in for a Vault server
// that implements vaultapi.Backend and counts calls per endpoint.
//
// Usage:
//
//	backend := fakes.NewFakeBackend().
//	    WithToken("root").
//	    WithKV("secret", "app", map[string]interface{}{"password": "hunter2"})
//	client := vault.New(backend)
//	_ = client.Authenticate(ctx, vault.TokenAuth{Token: "root"})
//	// ... exercise client ...
//	assert.Equal(t, 1, backend.CallCount(fakes.OpReadKV))
package fakes
