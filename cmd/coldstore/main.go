// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/coldstore/cmd/coldstore/cmd"
)

func main() {
	cmd.Execute()
}
