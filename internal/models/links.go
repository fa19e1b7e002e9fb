package models

import (
	"net/url"
	"regexp"
	"strings"
)

// Social profile and contact patterns mined from video descriptions, channel
// pages, and artist bios.
var (
	instagramRe = regexp.MustCompile(`(?i)(?:instagram\.com|instagr\.am)/([A-Za-z0-9_.]{2,30})`)
	tiktokRe    = regexp.MustCompile(`(?i)tiktok\.com/@([A-Za-z0-9_.]{2,24})`)
	spotifyRe   = regexp.MustCompile(`(?i)open\.spotify\.com/artist/([A-Za-z0-9]{15,30})`)
	twitterRe   = regexp.MustCompile(`(?i)\b(?:twitter\.com|x\.com)/([A-Za-z0-9_]{2,15})`)
	facebookRe  = regexp.MustCompile(`(?i)facebook\.com/([A-Za-z0-9.]{3,50})`)
	youtubeRe   = regexp.MustCompile(`(?i)youtube\.com/(?:channel/([A-Za-z0-9_-]{10,30})|(@[A-Za-z0-9_.-]{3,30}))`)
	emailRe     = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	urlRe       = regexp.MustCompile(`https?://[^\s"'<>\\]+`)
	redirectRe  = regexp.MustCompile(`https?://[^\s"'<>\\]*?/redirect\?[^\s"'<>\\]+`)
)

// reservedInstagramPaths are instagram.com path segments that are site
// features, not profile handles.
var reservedInstagramPaths = map[string]bool{
	"p": true, "reel": true, "reels": true, "tv": true, "stories": true,
	"explore": true, "accounts": true, "about": true, "legal": true,
	"share": true, "direct": true,
}

var reservedTwitterPaths = map[string]bool{
	"intent": true, "share": true, "home": true, "search": true,
	"hashtag": true, "i": true,
}

// socialHosts excludes profile URLs from website detection.
var socialHosts = []string{
	"instagram.com", "instagr.am", "tiktok.com", "twitter.com", "x.com",
	"facebook.com", "youtube.com", "youtu.be", "open.spotify.com",
	"soundcloud.com", "discord.gg", "discord.com", "linktr.ee",
	"patreon.com", "twitch.tv",
}

// rejectedRedirectPaths are decoded redirect targets that point at site
// chrome rather than an external destination.
var rejectedRedirectPaths = map[string]bool{
	"": true, "/": true, "/home": true, "/explore": true, "/login": true,
}

// UnwrapRedirects replaces tracking-redirect URLs with their decoded
// targets. Redirects whose target is missing or points back at site chrome
// are dropped from the text entirely.
func UnwrapRedirects(text string) string {
	return redirectRe.ReplaceAllStringFunc(text, func(raw string) string {
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		target := u.Query().Get("q")
		if target == "" {
			return ""
		}
		parsed, err := url.Parse(target)
		if err != nil || rejectedRedirectPaths[strings.TrimRight(parsed.Path, "/")] && parsed.Host == "" {
			return ""
		}
		return target
	})
}

// ParseSocialLinks mines profile links from free text. Redirect wrappers
// should be unwrapped first with [UnwrapRedirects].
func ParseSocialLinks(text string) SocialLinks {
	var links SocialLinks

	if m := spotifyRe.FindStringSubmatch(text); m != nil {
		links.Spotify = m[1]
	}
	if m := instagramRe.FindStringSubmatch(text); m != nil && !reservedInstagramPaths[strings.ToLower(m[1])] {
		links.Instagram = strings.TrimRight(m[1], ".")
	}
	if m := tiktokRe.FindStringSubmatch(text); m != nil {
		links.TikTok = strings.TrimRight(m[1], ".")
	}
	if m := twitterRe.FindStringSubmatch(text); m != nil && !reservedTwitterPaths[strings.ToLower(m[1])] {
		links.Twitter = m[1]
	}
	if m := facebookRe.FindStringSubmatch(text); m != nil {
		links.Facebook = m[1]
	}
	if m := youtubeRe.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			links.YouTube = m[1]
		} else {
			links.YouTube = m[2]
		}
	}

	links.Website = findWebsite(text)
	return links
}

// ParseEmail returns the most contact-worthy email in the text. Addresses
// on lines mentioning booking or management win over the first match.
func ParseEmail(text string) string {
	var first string
	for _, line := range strings.Split(text, "\n") {
		match := emailRe.FindString(line)
		if match == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "booking") || strings.Contains(lower, "management") ||
			strings.Contains(lower, "mgmt") || strings.Contains(lower, "contact") {
			return match
		}
		if first == "" {
			first = match
		}
	}
	return first
}

// findWebsite returns the first URL that is not a social or streaming
// profile.
func findWebsite(text string) string {
	for _, raw := range urlRe.FindAllString(text, -1) {
		u, err := url.Parse(strings.TrimRight(raw, ".,)"))
		if err != nil {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host == "" || isSocialHost(host) {
			continue
		}
		return u.String()
	}
	return ""
}

func isSocialHost(host string) bool {
	for _, social := range socialHosts {
		if host == social || strings.HasSuffix(host, "."+social) {
			return true
		}
	}
	return false
}
