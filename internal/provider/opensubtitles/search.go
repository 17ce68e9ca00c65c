package opensubtitles

import "subseek/internal/video"

// criterion is one search plus what its answers prove about identity.
type criterion struct {
	req         SearchRequest
	imdbMatch   bool
	parentMatch bool
	tmdbMatch   bool
}

// searchVariants produces the ordered searches for a video: one combining
// everything known, then single-term fallbacks for the identifiers it
// contained. Duplicate requests are removed while preserving order.
func searchVariants(v *video.Video, show showIdentity, langs []string) []criterion {
	full := SearchRequest{Languages: langs}
	if hash, ok := v.Hash("opensubtitles"); ok {
		full.MovieHash = hash
	}
	full.IMDBID = v.IMDbID
	full.TMDBID = v.TMDbID
	if v.Kind() == video.Episode {
		full.Query = v.Series
		full.Season = v.Season
		full.Episode = v.Episode()
		full.ParentIMDBID = v.SeriesIMDbID
		if full.ParentIMDBID == "" && show.IMDBID > 0 {
			full.ParentIMDBID = decorateIMDBID(show.IMDBID)
		}
		full.ParentTMDBID = v.SeriesTMDbID
		if full.ParentTMDBID == 0 && show.TMDBID > 0 {
			full.ParentTMDBID = int(show.TMDBID)
		}
	} else {
		full.Query = v.Title
	}

	variants := []SearchRequest{full}
	if terms(full) > 1 {
		if sanitizeIMDBID(full.IMDBID) != "" {
			variants = append(variants, SearchRequest{IMDBID: full.IMDBID, Languages: langs})
		}
		if full.TMDBID > 0 {
			variants = append(variants, SearchRequest{TMDBID: full.TMDBID, Languages: langs})
		}
		if sanitizeIMDBID(full.ParentIMDBID) != "" && full.Season > 0 && full.Episode > 0 {
			variants = append(variants, SearchRequest{
				ParentIMDBID: full.ParentIMDBID,
				Season:       full.Season,
				Episode:      full.Episode,
				Languages:    langs,
			})
		}
		if full.MovieHash != "" {
			variants = append(variants, SearchRequest{MovieHash: full.MovieHash, Languages: langs})
		}
		if full.Query != "" {
			variants = append(variants, SearchRequest{
				Query:     full.Query,
				Season:    full.Season,
				Episode:   full.Episode,
				Languages: langs,
			})
		}
	}

	unique := make([]criterion, 0, len(variants))
	seen := make(map[string]struct{}, len(variants))
	for _, variant := range variants {
		params := variant.Params()
		key := params.Encode()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, criterion{
			req:         variant,
			imdbMatch:   params.Has("imdb_id"),
			parentMatch: params.Has("parent_imdb_id") || params.Has("parent_tmdb_id"),
			tmdbMatch:   params.Has("tmdb_id"),
		})
	}
	return unique
}

// terms counts the identifying parameters of req, ignoring languages.
func terms(req SearchRequest) int {
	params := req.Params()
	params.Del("languages")
	return len(params)
}

// releaseInfo picks the more descriptive of the release and file names.
func releaseInfo(r Result, fallback string) string {
	switch {
	case r.Release == "" && r.FileName == "":
		return fallback
	case len(r.Release) > len(r.FileName):
		return r.Release
	default:
		return r.FileName
	}
}
