package ir

// Output cases of a completed call.
const (
	OutputOk  = "Ok"
	OutputErr = "Err"
)

// Entry is a typed, content-addressed record in an instance's chain.
type Entry struct {
	Address string   `json:"address"`
	Type    string   `json:"type"`
	Content IRObject `json:"content"`
	Author  string   `json:"author"`
	Seq     int64    `json:"seq"` // Seq of the first commit
}

// Link is a directed, tagged edge between two entry addresses.
// Links are append-only and ordered by Seq.
type Link struct {
	ID     string `json:"id"`
	Base   string `json:"base"`
	Tag    string `json:"tag"`
	Target string `json:"target"`
	Author string `json:"author"`
	Seq    int64  `json:"seq"`
}

// Provenance records who made a call and under which capability.
type Provenance struct {
	AgentID    string `json:"agent_id"`
	Capability string `json:"capability"`
}

// Invocation is the durable record of a zome call before it runs.
type Invocation struct {
	ID            string     `json:"id"` // CallID
	RequestID     string     `json:"request_id"`
	Zome          string     `json:"zome"`
	Module        string     `json:"module"`
	Function      string     `json:"function"`
	Args          IRObject   `json:"args"`
	Seq           int64      `json:"seq"`
	Provenance    Provenance `json:"provenance"`
	DNAHash       string     `json:"dna_hash"`
	EngineVersion string     `json:"engine_version"`
	IRVersion     string     `json:"ir_version"`
}

// Completion is the tagged result of an invocation.
// OutputCase is OutputOk or OutputErr.
type Completion struct {
	ID           string     `json:"id"` // ResultID
	InvocationID string     `json:"invocation_id"`
	OutputCase   string     `json:"output_case"`
	Result       IRValue    `json:"result"`
	Seq          int64      `json:"seq"`
	Provenance   Provenance `json:"provenance"`
}

// IsOk reports whether the call succeeded.
func (c Completion) IsOk() bool {
	return c.OutputCase == OutputOk
}
