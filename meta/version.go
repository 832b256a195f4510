package meta

const (
	// ProtocolVersion is carried in every wire frame; both agents must
	// match exactly since the chain layout is positional.
	ProtocolVersion    = 1
	ProtocolMinVersion = 1
)

// Following variables are filled in by main.go
var (
	Version   string
	GitCommit string
	BuildDate string
)

type VersionOutput struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`

	ProtocolVersion    int `json:"protocolVersion"`
	ProtocolMinVersion int `json:"protocolMinVersion"`
}

func GetVersion() *VersionOutput {
	return &VersionOutput{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,

		ProtocolVersion:    ProtocolVersion,
		ProtocolMinVersion: ProtocolMinVersion,
	}
}
