package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint. Region classification reuses one large system prompt across
// many calls, so the prompt is cached for ttl ("5m" or "1h"); an empty ttl
// uses the API default.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
