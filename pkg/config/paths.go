package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "blockforge"

// windows: C:\Users\{user}\AppData\Roaming\blockforge
// macOS: ~/Library/Application Support/blockforge
// linux: ~/.config/blockforge
func GetConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir(), "AppData", "Roaming")
		}
		return filepath.Join(appData, appName)

	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)

	default:
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			xdgConfig = filepath.Join(homeDir(), ".config")
		}
		return filepath.Join(xdgConfig, appName)
	}
}

// windows: C:\Users\{user}\AppData\Local\blockforge
// macOS: ~/Library/Caches/blockforge
// linux: ~/.cache/blockforge
func GetCacheDir() string {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(homeDir(), "AppData", "Local")
		}
		return filepath.Join(localAppData, appName)

	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches", appName)

	default:
		xdgCache := os.Getenv("XDG_CACHE_HOME")
		if xdgCache == "" {
			xdgCache = filepath.Join(homeDir(), ".cache")
		}
		return filepath.Join(xdgCache, appName)
	}
}

func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// GetDefaultCachePath is where the fetch cache database lives when
// cache.path is left empty.
func GetDefaultCachePath() string {
	return filepath.Join(GetCacheDir(), "fetch.db")
}

// homeDir falls back to the working directory when no home is set,
// which happens in minimal CI containers.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}
