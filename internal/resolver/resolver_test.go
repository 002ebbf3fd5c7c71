package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, manifest string, lockfiles ...string) string {
	t.Helper()
	dir := t.TempDir()
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o600))
	}
	for _, lf := range lockfiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, lf), nil, 0o600))
	}
	return dir
}

func TestDetectPackageManager(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  PackageManager
	}{
		{"none", nil, NPM},
		{"yarn", []string{"yarn.lock"}, Yarn},
		{"pnpm", []string{"pnpm-lock.yaml"}, PNPM},
		{"bun", []string{"bun.lockb"}, Bun},
		{"bun beats pnpm", []string{"pnpm-lock.yaml", "bun.lockb"}, Bun},
		{"pnpm beats yarn", []string{"yarn.lock", "pnpm-lock.yaml"}, PNPM},
		{"npm lock is still npm", []string{"package-lock.json"}, NPM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeProject(t, "", tt.files...)
			assert.Equal(t, tt.want, DetectPackageManager(dir))
		})
	}
}

func TestResolveCommand(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		locks    []string
		want     string
		err      error
	}{
		{"pnpm dev", `{"scripts":{"dev":"vite"}}`, []string{"pnpm-lock.yaml"}, "pnpm run dev", nil},
		{"npm start", `{"scripts":{"start":"node index.js"}}`, nil, "npm start", nil},
		{"yarn serve", `{"scripts":{"serve":"vue-cli-service serve"}}`, []string{"yarn.lock"}, "yarn run serve", nil},
		{"dev preferred", `{"scripts":{"serve":"a","start":"b","dev":"c"}}`, []string{"bun.lockb"}, "bun run dev", nil},
		{"start before serve", `{"scripts":{"serve":"a","start":"b"}}`, nil, "npm start", nil},
		{"empty script ignored", `{"scripts":{"dev":"","start":"x"}}`, nil, "npm start", nil},
		{"no scripts", `{"scripts":{"build":"tsc"}}`, nil, "", ErrNoCommand},
		{"scripts missing", `{"name":"x"}`, nil, "", ErrNoCommand},
		{"missing manifest", "", nil, "", ErrNoManifest},
		{"broken manifest", `{"scripts":`, nil, "", ErrNoManifest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeProject(t, tt.manifest, tt.locks...)
			got, err := ResolveCommand(dir)
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				assert.True(t, errors.Is(err, ErrNoCommand), "resolution failures wrap ErrNoCommand")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrNoCommandMessage(t *testing.T) {
	assert.Equal(t, "No dev command configured and none detected", ErrNoCommand.Error())
}

func TestDetectFramework(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     string
	}{
		{"next wins over react", `{"dependencies":{"next":"14","react":"18"}}`, "Next.js"},
		{"react vite", `{"dependencies":{"react":"18"},"devDependencies":{"vite":"5"}}`, "React + Vite"},
		{"vue vite", `{"dependencies":{"vue":"3","vite":"5"}}`, "Vue + Vite"},
		{"svelte vite", `{"devDependencies":{"svelte":"4","vite":"5"}}`, "Svelte + Vite"},
		{"plain vite", `{"devDependencies":{"vite":"5"}}`, "Vite"},
		{"cra", `{"dependencies":{"react":"18","react-scripts":"5"}}`, "Create React App"},
		{"angular", `{"dependencies":{"@angular/core":"17"}}`, "Angular"},
		{"nuxt over vue", `{"dependencies":{"nuxt":"3","vue":"3"}}`, "Nuxt"},
		{"sveltekit", `{"devDependencies":{"@sveltejs/kit":"2","svelte":"4"}}`, "SvelteKit"},
		{"astro", `{"dependencies":{"astro":"4"}}`, "Astro"},
		{"gatsby", `{"dependencies":{"gatsby":"5","react":"18"}}`, "Gatsby"},
		{"vue", `{"dependencies":{"vue":"3"}}`, "Vue"},
		{"react", `{"dependencies":{"react":"18"}}`, "React"},
		{"express", `{"dependencies":{"express":"4"}}`, "Express"},
		{"fastify", `{"dependencies":{"fastify":"4"}}`, "Fastify"},
		{"koa", `{"dependencies":{"koa":"2"}}`, "Koa"},
		{"generic node", `{"dependencies":{"lodash":"4"}}`, "Node.js"},
		{"empty manifest", `{}`, "Node.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := DetectFramework(writeProject(t, tt.manifest))
			require.NotNil(t, fw)
			assert.Equal(t, tt.want, fw.Name)
			assert.NotEmpty(t, fw.Icon)
		})
	}
}

func TestDetectFramework_NoManifest(t *testing.T) {
	assert.Nil(t, DetectFramework(t.TempDir()))
	assert.Nil(t, DetectFramework(writeProject(t, "not json")))
}
