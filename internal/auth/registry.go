package auth

import (
	"sort"
	"strings"
)

// Registry はプロバイダー名からIdentityProviderを引く。
// 起動時に構築し、以降は読み取り専用で共有する。
type Registry struct {
	providers map[string]IdentityProvider
}

// NewRegistry は指定プロバイダーを登録したRegistryを生成する。
// 同名のプロバイダーは後から渡したものが優先される。
func NewRegistry(providers ...IdentityProvider) *Registry {
	r := &Registry{providers: make(map[string]IdentityProvider, len(providers))}
	for _, p := range providers {
		r.providers[strings.ToLower(p.Name())] = p
	}
	return r
}

// Get は名前に対応するプロバイダーを返す。名前は大文字小文字を区別しない。
func (r *Registry) Get(name string) (IdentityProvider, bool) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names は登録済みプロバイダー名を昇順で返す。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
