// Command thumbnailer-admin is a small CLI against thumbnailerd's admin HTTP
// routes, mirroring the original's thumbnailer-admin tool: "get <path>"
// fetches a thumbnail, "stats [i|t|f]" reports cache statistics, and
// clear-stats/clear/compact/shutdown drive the matching admin route. Exit
// codes follow spec §6: 0 success, 1 any usage or service error.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	base := getEnv("THUMBNAILER_ADMIN_URL", "http://localhost:8080")

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "thumbnailer-admin: no command given")
		return 1
	}

	switch args[0] {
	case "get":
		return cmdGet(base, args[1:])
	case "stats":
		return cmdCacheOp(base, "stats", args[1:])
	case "clear-stats":
		return cmdCacheOp(base, "clear-stats", args[1:])
	case "clear":
		return cmdCacheOp(base, "clear", args[1:])
	case "compact":
		return cmdCacheOp(base, "compact", args[1:])
	case "shutdown":
		return cmdShutdown(base)
	default:
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: no such command %q\n", args[0])
		return 1
	}
}

func cmdGet(base string, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "thumbnailer-admin: get requires a path")
		return 1
	}

	path := args[0]
	w, h := 0, 0
	destDir := "."

	for _, a := range args[1:] {
		switch {
		case strings.HasPrefix(a, "--size="):
			size, err := strconv.Atoi(strings.TrimPrefix(a, "--size="))
			if err != nil {
				fmt.Fprintf(os.Stderr, "thumbnailer-admin: invalid --size: %v\n", err)
				return 1
			}
			w, h = size, size
		case strings.HasPrefix(a, "-s="):
			dims := strings.SplitN(strings.TrimPrefix(a, "-s="), "x", 2)
			if len(dims) != 2 {
				fmt.Fprintln(os.Stderr, "thumbnailer-admin: invalid -s, expected WxH")
				return 1
			}
			var err error
			if w, err = strconv.Atoi(dims[0]); err != nil {
				fmt.Fprintf(os.Stderr, "thumbnailer-admin: invalid width: %v\n", err)
				return 1
			}
			if h, err = strconv.Atoi(dims[1]); err != nil {
				fmt.Fprintf(os.Stderr, "thumbnailer-admin: invalid height: %v\n", err)
				return 1
			}
		default:
			destDir = a
		}
	}

	q := url.Values{}
	q.Set("path", path)
	if w > 0 {
		q.Set("w", strconv.Itoa(w))
	}
	if h > 0 {
		q.Set("h", strconv.Itoa(h))
	}

	resp, err := http.Get(base + "/v1/thumbnail?" + q.Encode())
	if err != nil {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: request failed: %s\n", resp.Status)
		return 1
	}

	outPath := destDir + "/" + baseName(path) + ".jpg"
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: %v\n", err)
		return 1
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: %v\n", err)
		return 1
	}

	fmt.Println(outPath)
	return 0
}

// cacheArg maps the original's single-letter cache selectors (i/t/f) to the
// cache= query value the admin routes expect.
func cacheArg(letter string) (string, bool) {
	switch letter {
	case "i", "":
		return "image", true
	case "t":
		return "thumbnail", true
	case "f":
		return "failure", true
	default:
		return "", false
	}
}

func cmdCacheOp(base, route string, args []string) int {
	letter := ""
	if len(args) > 0 {
		letter = args[0]
	}
	cache, ok := cacheArg(letter)
	if !ok {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: no such cache %q\n", letter)
		return 1
	}

	method := http.MethodGet
	if route != "stats" {
		method = http.MethodPost
	}

	req, err := http.NewRequest(method, base+"/v1/admin/"+route+"?cache="+cache, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: %v\n", err)
		return 1
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: request failed: %s\n", resp.Status)
		return 1
	}

	if route == "stats" {
		var out map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "thumbnailer-admin: %v\n", err)
			return 1
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	}

	return 0
}

func cmdShutdown(base string) int {
	resp, err := http.Post(base+"/v1/admin/shutdown", "", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "thumbnailer-admin: request failed: %s\n", resp.Status)
		return 1
	}
	return 0
}

func baseName(path string) string {
	idx := strings.LastIndexByte(path, '/')
	name := path[idx+1:]
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		name = name[:dot]
	}
	return name
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
