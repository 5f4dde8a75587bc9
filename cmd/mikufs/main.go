// Command mikufs mounts a MikuFS ext2/3/4 image through a userspace
// FUSE adapter.
package main

import "github.com/altushkaso/mikufs/cmd"

func main() {
	cmd.Execute()
}
