package bcc

import (
	"fmt"
	"strconv"
)

// HistoryQuery lists the rows pgbench wrote, in a stable order, so the
// outputs of both servers can be compared line by line.
const HistoryQuery = "select tid, bid, aid, delta from pgbench_history order by tid, bid, aid, delta"

// Target is where a client connects.
type Target struct {
	Host     string
	Port     int
	Database string
	User     string
}

func (t Target) connArgs() []string {
	return []string{"-h", t.Host, "-p", strconv.Itoa(t.Port), "-U", t.User}
}

// Bench configures a pgbench run. Init runs "pgbench -i" and ignores the
// other fields.
type Bench struct {
	Init    bool
	Jobs    int
	Clients int
	Seconds int
}

// PgbenchArgv returns the argv of a pgbench run against t.
func PgbenchArgv(bin string, t Target, b Bench) []string {
	argv := append([]string{bin}, t.connArgs()...)
	if b.Init {
		argv = append(argv, "-i")
	} else {
		argv = append(argv,
			"-j", strconv.Itoa(b.Jobs),
			"-c", strconv.Itoa(b.Clients),
			"-T", strconv.Itoa(b.Seconds),
		)
	}
	return append(argv, t.Database)
}

// PsqlArgv returns the argv of a psql run of query against t.
func PsqlArgv(bin string, t Target, query string) []string {
	argv := append([]string{bin}, t.connArgs()...)
	return append(argv, "-c", query, t.Database)
}

// PsqlName is the process name of the psql run against port.
func PsqlName(port int) string {
	return fmt.Sprintf("psql-%d", port)
}
