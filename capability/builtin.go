package capability

// The built-in catalog and detection rules. The catalog is closed and
// curated: guest code cannot extend it, operators can only swap in a
// different catalog file at startup (see catalog_file.go).

// Built-in capability ids.
const (
	CapCore        ID = "core"
	CapCollections ID = "collections"
	CapLinq        ID = "linq"
	CapJSON        ID = "json"
	CapLogging     ID = "logging"
	CapAsync       ID = "async"
	CapCrypto      ID = "crypto"
	CapFileIO      ID = "io.file"
	CapHTTP        ID = "http"
	CapDatabase    ID = "database"
	CapReflection  ID = "reflection"
	CapInterop     ID = "interop"
)

// BuiltinCatalog returns the curated default catalog. The definitions form
// a DAG rooted at core; every privileged capability requires an explicit
// operator grant before a deployment may use it.
func BuiltinCatalog() *Catalog {
	c, err := NewCatalog(
		Capability{
			ID:                 CapCore,
			Name:               "Core Runtime",
			Category:           CategoryCore,
			MemoryFootprint:    64 << 10,
			ProvidedTypes:      []string{"Object", "String", "Number"},
			RequiredAssemblies: []string{"System.Runtime"},
			RequiredNamespaces: []string{"System"},
		},
		Capability{
			ID:                 CapCollections,
			Name:               "Collections",
			Dependencies:       []ID{CapCore},
			Category:           CategoryCollections,
			MemoryFootprint:    32 << 10,
			ProvidedTypes:      []string{"List", "Dictionary", "HashSet"},
			RequiredAssemblies: []string{"System.Collections"},
			RequiredNamespaces: []string{"System.Collections.Generic"},
		},
		Capability{
			ID:                 CapLinq,
			Name:               "Query Operators",
			Dependencies:       []ID{CapCollections},
			Category:           CategoryCollections,
			MemoryFootprint:    48 << 10,
			ProvidedMethods:    []string{"Where", "Select", "OrderBy", "GroupBy"},
			RequiredAssemblies: []string{"System.Linq"},
			RequiredNamespaces: []string{"System.Linq"},
		},
		Capability{
			ID:                 CapJSON,
			Name:               "JSON Serialization",
			Dependencies:       []ID{CapCore},
			Category:           CategorySerialization,
			MemoryFootprint:    96 << 10,
			ProvidedTypes:      []string{"JsonSerializer", "JsonDocument"},
			RequiredAssemblies: []string{"System.Text.Json"},
			RequiredNamespaces: []string{"System.Text.Json"},
		},
		Capability{
			ID:                 CapLogging,
			Name:               "Structured Logging",
			Dependencies:       []ID{CapCore},
			Category:           CategoryLogging,
			MemoryFootprint:    16 << 10,
			ProvidedTypes:      []string{"Logger"},
			RequiredAssemblies: []string{"Microsoft.Extensions.Logging"},
			RequiredNamespaces: []string{"Microsoft.Extensions.Logging"},
		},
		Capability{
			ID:                 CapAsync,
			Name:               "Async Primitives",
			Dependencies:       []ID{CapCore},
			Category:           CategoryAsync,
			MemoryFootprint:    32 << 10,
			ProvidedTypes:      []string{"Task", "ValueTask", "CancellationToken"},
			RequiredAssemblies: []string{"System.Threading.Tasks"},
			RequiredNamespaces: []string{"System.Threading.Tasks"},
		},
		Capability{
			ID:                 CapCrypto,
			Name:               "Cryptographic Primitives",
			Dependencies:       []ID{CapCore},
			Category:           CategorySecurity,
			MemoryFootprint:    64 << 10,
			ProvidedTypes:      []string{"SHA256", "Aes", "RandomNumberGenerator"},
			RequiredAssemblies: []string{"System.Security.Cryptography"},
			RequiredNamespaces: []string{"System.Security.Cryptography"},
		},
		Capability{
			ID:                 CapFileIO,
			Name:               "File System Access",
			Dependencies:       []ID{CapCore},
			Privileged:         true,
			Category:           CategoryIO,
			MemoryFootprint:    32 << 10,
			ProvidedTypes:      []string{"File", "Directory", "FileStream"},
			RequiredAssemblies: []string{"System.IO.FileSystem"},
			RequiredNamespaces: []string{"System.IO"},
		},
		Capability{
			ID:                 CapHTTP,
			Name:               "HTTP Client",
			Dependencies:       []ID{CapCore, CapAsync},
			Privileged:         true,
			Category:           CategoryNetwork,
			MemoryFootprint:    128 << 10,
			ProvidedTypes:      []string{"HttpClient", "HttpRequestMessage"},
			RequiredAssemblies: []string{"System.Net.Http"},
			RequiredNamespaces: []string{"System.Net.Http"},
		},
		Capability{
			ID:                 CapDatabase,
			Name:               "Database Access",
			Dependencies:       []ID{CapCore, CapCollections},
			Privileged:         true,
			Category:           CategoryDatabase,
			MemoryFootprint:    256 << 10,
			ProvidedTypes:      []string{"DbConnection", "DbCommand"},
			RequiredAssemblies: []string{"System.Data.Common"},
			RequiredNamespaces: []string{"System.Data"},
		},
		Capability{
			ID:                 CapReflection,
			Name:               "Runtime Reflection",
			Dependencies:       []ID{CapCore},
			Privileged:         true,
			Category:           CategoryReflection,
			MemoryFootprint:    64 << 10,
			ProvidedTypes:      []string{"Type", "MethodInfo"},
			RequiredAssemblies: []string{"System.Reflection"},
			RequiredNamespaces: []string{"System.Reflection"},
		},
		Capability{
			ID:                 CapInterop,
			Name:               "Native Interop",
			Dependencies:       []ID{CapCore},
			Privileged:         true,
			Category:           CategoryInterop,
			MemoryFootprint:    32 << 10,
			ProvidedTypes:      []string{"Marshal", "SafeHandle"},
			RequiredAssemblies: []string{"System.Runtime.InteropServices"},
			RequiredNamespaces: []string{"System.Runtime.InteropServices"},
		},
	)
	if err != nil {
		// The built-in definitions are fixed at compile time; a validation
		// failure here is a programming error.
		panic(err)
	}
	return c
}
