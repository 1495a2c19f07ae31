// Command ninefs-mount re-exports a 9P-served namespace as a local FUSE
// mount. The server is resolved from the environment the same way the
// one-shot ninefs command does it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"

	"ninefs/diag"
	"ninefs/fusebridge"
	"ninefs/nsfs"
)

func main() {
	debug := flag.Bool("debug", false, "enable FUSE debug output")
	diagAddr := flag.String("diag", "", "serve shielded-failure diagnostics over HTTP on this address")
	dialTimeout := flag.Duration("dial-timeout", 10*time.Second, "deadline for connecting to the namespace server")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Printf("Usage: %s [options] MOUNTPOINT\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	mountpoint := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), *dialTimeout)
	tree, err := nsfs.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer tree.Close()

	if *diagAddr != "" {
		go func() {
			log.Printf("diagnostics on http://%s/", *diagAddr)
			if err := http.ListenAndServe(*diagAddr, diag.Default.Handler()); err != nil {
				log.Printf("diagnostics server: %v", err)
			}
		}()
	}

	root := fusebridge.NewRoot(tree)

	opts := &fs.Options{}
	opts.Debug = *debug
	entryTimeout := time.Duration(0)
	attrTimeout := time.Duration(0)
	negativeTimeout := time.Duration(0)
	opts.EntryTimeout = &entryTimeout
	opts.AttrTimeout = &attrTimeout
	opts.NegativeTimeout = &negativeTimeout

	fssrv, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		log.Fatalf("Mount failed: %v", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		fssrv.Unmount()
		os.Exit(0)
	}()

	fssrv.Wait()
}
