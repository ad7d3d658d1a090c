package redis

const (
	// addWarningScript atomically appends a warning and trims the history
	addWarningScript = `
local history_key = KEYS[1]   -- refocus:warnings

local score = ARGV[1]
local member = ARGV[2]
local limit = tonumber(ARGV[3])

redis.call('ZADD', history_key, score, member)

-- Keep only the newest entries when a limit is configured
if limit > 0 then
  local size = redis.call('ZCARD', history_key)
  if size > limit then
    redis.call('ZREMRANGEBYRANK', history_key, 0, size - limit - 1)
  end
end

return 'OK'
`
)
