// Command ninefs is a one-shot client for a 9P-served namespace.
//
// It resolves the server from the environment (NINEP_ADDRESS, or USER
// and DISPLAY) and runs a single operation against a path.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"ninefs/agent"
	"ninefs/nsfs"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] COMMAND PATH\n", os.Args[0])
	fmt.Fprintf(os.Stderr, `Commands:
  ls PATH        list directory entries
  cat PATH       print file content
  write PATH     replace file content with stdin
  create PATH    create a file (use -dir for a directory)
  rm PATH        remove an entry
  clear PATH     remove every child of a directory
  stat PATH      print metadata
  exists PATH    exit 0 if the path exists, 1 otherwise
  lines PATH     print the file line by line as it streams
Options:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	timeout := flag.Duration("timeout", 30*time.Second, "deadline for the whole operation")
	dir := flag.Bool("dir", false, "create a directory instead of a file")
	perm := flag.Uint("perm", 0644, "permission bits for create")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
	}
	command, path := flag.Arg(0), flag.Arg(1)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	defer nsfs.Disconnect()

	if err := run(ctx, command, path, *dir, uint32(*perm)); err != nil {
		log.Fatalf("ninefs: %v", err)
	}
}

func run(ctx context.Context, command, path string, dir bool, perm uint32) error {
	switch command {
	case "ls":
		names, ok, err := nsfs.Entries(ctx, path)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("list %s: listing failed", path)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil

	case "cat":
		data, ok, err := nsfs.Read(ctx, path)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("read %s: read failed", path)
		}
		_, err = os.Stdout.Write(data)
		return err

	case "write":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		ok, err := nsfs.Write(ctx, path, data)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("write %s: write failed", path)
		}
		return nil

	case "create":
		if dir {
			perm |= agent.PermDir
		}
		ok, err := nsfs.Create(ctx, path, perm)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("create %s: create failed", path)
		}
		return nil

	case "rm":
		ok, err := nsfs.Remove(ctx, path)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("remove %s: remove failed", path)
		}
		return nil

	case "clear":
		ok, err := nsfs.Clear(ctx, path)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("clear %s: some children were not removed", path)
		}
		return nil

	case "stat":
		md, err := nsfs.Stat(ctx, path)
		if err != nil {
			return err
		}
		kind := "file"
		if md.IsDir {
			kind = "dir"
		}
		fmt.Printf("%s\t%s\t%d\t%s\n", md.Name, kind, md.Size, md.ModTime.Format(time.RFC3339))
		return nil

	case "exists":
		present, err := nsfs.Exists(ctx, path)
		if err != nil {
			return err
		}
		if !present {
			os.Exit(1)
		}
		return nil

	case "lines":
		return nsfs.EachLine(ctx, path, func(line string) {
			fmt.Println(line)
		})

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
