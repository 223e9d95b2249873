package habbo

import (
	"fmt"
	"strings"
)

// hotelDomains mapeia o hotel (código curto ou domínio) para o domínio
// canônico da API pública. Dado de configuração, não lógica — novos
// hotéis entram aqui.
var hotelDomains = map[string]string{
	"br":     "com.br",
	"com.br": "com.br",
	"us":     "com",
	"com":    "com",
	"tr":     "com.tr",
	"com.tr": "com.tr",
	"es":     "es",
	"de":     "de",
	"fi":     "fi",
	"fr":     "fr",
	"it":     "it",
	"nl":     "nl",
}

// NormalizeHotel resolves a hotel identifier to its canonical API domain
// (e.g. "br" -> "com.br"). Unknown hotels are rejected up front so they
// never reach the store.
func NormalizeHotel(hotel string) (string, error) {
	domain, ok := hotelDomains[strings.ToLower(strings.TrimSpace(hotel))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownHotel, hotel)
	}
	return domain, nil
}

func baseURL(domain string) string {
	return "https://www.habbo." + domain
}

// AvatarImageURL returns the habbo-imaging render URL for a figure
// string. Used by the figure archiver when an avatar update is detected.
func AvatarImageURL(hotel, figure string) (string, error) {
	domain, err := NormalizeHotel(hotel)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/habbo-imaging/avatarimage?figure=%s&size=l&direction=2&head_direction=3", baseURL(domain), figure), nil
}
