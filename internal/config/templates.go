package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a commented starter config to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(Template), 0o600)
}

const Template = `# Compositor socket. Leave unset to use $XDG_RUNTIME_DIR/$WAYLAND_DISPLAY.
# socket = "/run/user/1000/wayland-0"
# runtime_dir = "/run/user/1000"
# display = "wayland-0"
# Largest accepted compositor message, 4096 to 65535 bytes.
max_message_bytes = 4096

[serve]
addr = "127.0.0.1:9400"
cors_origins = ["http://localhost:3000"]

[log]
level = "info"
`
