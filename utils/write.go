package utils

import (
	"encoding/json"
	"io/ioutil"
	"os"
)

func MakeFolder(folderPath string) {
	if _, err := os.Stat(folderPath); os.IsNotExist(err) {
		os.MkdirAll(folderPath, os.ModePerm)
	}
}

func DeleteFolder(folderPath string) {
	os.RemoveAll(folderPath)
}

// WriteJSONFile marshals v with indentation and writes it world-readable.
// Result files are meant to be picked up by other tooling.
func WriteJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}
