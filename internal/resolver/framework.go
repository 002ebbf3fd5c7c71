package resolver

// Framework is a UI label for a project.
type Framework struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type frameworkRule struct {
	fw   Framework
	deps []string // all must be present
}

// First match wins, so combinations precede their parts.
var frameworkRules = []frameworkRule{
	{Framework{"Next.js", "nextjs"}, []string{"next"}},
	{Framework{"React + Vite", "react"}, []string{"react", "vite"}},
	{Framework{"Vue + Vite", "vue"}, []string{"vue", "vite"}},
	{Framework{"Svelte + Vite", "svelte"}, []string{"svelte", "vite"}},
	{Framework{"Vite", "vite"}, []string{"vite"}},
	{Framework{"Create React App", "react"}, []string{"react-scripts"}},
	{Framework{"Angular", "angular"}, []string{"@angular/core"}},
	{Framework{"Nuxt", "nuxt"}, []string{"nuxt"}},
	{Framework{"SvelteKit", "svelte"}, []string{"@sveltejs/kit"}},
	{Framework{"Astro", "astro"}, []string{"astro"}},
	{Framework{"Gatsby", "gatsby"}, []string{"gatsby"}},
	{Framework{"Vue", "vue"}, []string{"vue"}},
	{Framework{"React", "react"}, []string{"react"}},
	{Framework{"Express", "express"}, []string{"express"}},
	{Framework{"Fastify", "fastify"}, []string{"fastify"}},
	{Framework{"Koa", "koa"}, []string{"koa"}},
}

// NodeFramework is reported for any readable manifest without a known framework.
var NodeFramework = Framework{"Node.js", "nodejs"}

// DetectFramework labels the project in dir. It returns nil when dir has no
// readable package.json. It never runs anything.
func DetectFramework(dir string) *Framework {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil
	}
	fw := m.Framework()
	return &fw
}

// Framework applies the detection table to the manifest's dependencies.
func (m *Manifest) Framework() Framework {
	for _, r := range frameworkRules {
		if m.hasAll(r.deps) {
			return r.fw
		}
	}
	return NodeFramework
}

func (m *Manifest) hasAll(deps []string) bool {
	for _, d := range deps {
		if !m.HasDependency(d) {
			return false
		}
	}
	return true
}
