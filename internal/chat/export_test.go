package chat

var TruncateRunes = truncateRunes
