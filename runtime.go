package main

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

const libraryEnv = "ONNXRUNTIME_LIB"

// resolveSharedLibrary picks the ONNX Runtime library: the explicit path, then $ONNXRUNTIME_LIB,
// then the first match in the usual install directories. If nothing matches, the bare library
// name is returned and the dynamic loader searches for it.
func resolveSharedLibrary(explicit string) (string, error) {
	if explicit != "" {
		return explicit, checkFile(explicit, "ONNX Runtime library")
	}
	if env := os.Getenv(libraryEnv); env != "" {
		return env, checkFile(env, "ONNX Runtime library")
	}

	name := libraryName()
	for _, dir := range libraryDirs() {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return name, nil
}

func libraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	}
	return "libonnxruntime.so"
}

func libraryDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/opt/homebrew/lib", "/usr/local/lib"}
	case "windows":
		return nil
	}
	return []string{"/usr/local/lib", "/usr/lib", "/usr/lib/aarch64-linux-gnu", "/usr/lib/x86_64-linux-gnu"}
}

func checkFile(path, what string) error {
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.Errorf("%s not found: %s", what, path)
	}
	if err != nil {
		return errors.Wrapf(err, "%s", what)
	}
	if st.IsDir() {
		return errors.Errorf("%s is a directory: %s", what, path)
	}
	return nil
}
