package pdsclient

// Backend is the opener each concrete backend package (xrpc, filestore)
// registers via RegisterBackend so that Open can dispatch on PdsUrl scheme
// without this package importing either concrete backend (which would create
// an import cycle, since both backends import pdsclient for its types).
type Backend func(url PdsUrl) (Pds, error)

var backends = map[string]Backend{}

// RegisterBackend wires a scheme ("https", "http", or "file") to an opener.
// Concrete backend packages call this from an init() function.
func RegisterBackend(scheme string, open Backend) {
	backends[scheme] = open
}

// Open dispatches a PdsUrl to its concrete backend: file:// opens the
// filesystem-backed Pds, http(s):// opens the XRPC-backed Pds. Selection is
// deterministic and total over the three admitted schemes.
func Open(url PdsUrl) (Pds, error) {
	open, ok := backends[url.Scheme()]
	if !ok {
		return nil, NewInvalidInputError("no backend registered for scheme " + url.Scheme())
	}
	return open(url)
}
