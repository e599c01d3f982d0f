package obfuscation

import (
	"encoding/base64"
	"strings"
)

const maxLengthToSkipObfuscation = 3

// Client hides token values and other sensitive stuff from the logs
//go:generate mockgen -package=obfuscation -destination ./mock.go -source=client.go
type Client interface {
	CollectSecrets(values ...string)
	Obfuscate(input string) string
}

// NewClient returns a new obfuscation.Client
func NewClient() (Client, error) {
	return &client{
		replacer: strings.NewReplacer(),
	}, nil
}

type client struct {
	replacer *strings.Replacer
}

func (c *client) CollectSecrets(values ...string) {

	replacerStrings := []string{}

	for _, v := range values {
		valueLines := strings.Split(v, "\n")
		for _, l := range valueLines {
			if len(l) > maxLengthToSkipObfuscation {
				// obfuscate plain secret value
				replacerStrings = append(replacerStrings, l, "***")

				// obfuscate secret value in base64 encoding
				replacerStrings = append(replacerStrings, base64.StdEncoding.EncodeToString([]byte(l)), "***")
			}
		}
	}

	c.replacer = strings.NewReplacer(replacerStrings...)
}

func (c *client) Obfuscate(input string) string {
	return c.replacer.Replace(input)
}
