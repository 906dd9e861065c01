/*
 * GifManager:
 * Offers functions to retrieve GIF URLs from an online GIF platform, such as Giphy.
 */

package gifmanager

import (
	"errors"
	"strings"

	libgiphy "github.com/sanzaru/go-giphy"

	"thomas-leister.de/greenhouse/log"
)

var ErrNoApiKey = errors.New("no giphy api key configured")

type GiphyClient struct {
	Apiclient *libgiphy.Giphy
}

func (g *GiphyClient) Init(api_key string) {
	if api_key == "" {
		log.Infof("GifManager: No API key, GIFs disabled")
		return
	}
	g.Apiclient = libgiphy.NewGiphy(api_key)
}

func (g *GiphyClient) Enabled() bool {
	return g.Apiclient != nil
}

func (g *GiphyClient) GetGifURL(keywords string) (string, error) {
	if g.Apiclient == nil {
		return "", ErrNoApiKey
	}

	dataRandom, err := g.Apiclient.GetRandom(strings.TrimSpace(keywords))
	if err != nil {
		log.Warnf("GifManager: %v", err)
		return "", err
	}

	gifUrl := dataRandom.Data.Images.Original.Mp4
	if gifUrl == "" {
		return "", errors.New("giphy returned no GIF for " + keywords)
	}
	log.Debugf("GifManager: GIF URL: %s", gifUrl)

	return gifUrl, nil
}
