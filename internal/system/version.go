package system

import "fmt"

var Name = "rbac-lookup"
var Version = "<unset>"
var Commit = "<unset>"
var Repository = "https://github.com/telekom/rbac-lookup"

func PrettyInfo() string {
	return fmt.Sprintf(`%s version %s
commit: %s
source: %s/tree/%s
`, Name, Version, Commit, Repository, Commit)
}
