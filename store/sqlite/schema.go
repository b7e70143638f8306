package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS ohlcv (
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL,
	atr REAL,
	UNIQUE(symbol, timeframe, timestamp, source)
);

CREATE TABLE IF NOT EXISTS signals (
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	direction TEXT NOT NULL,
	price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	consumed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_signals_key ON signals(symbol, timeframe, timestamp);

CREATE TABLE IF NOT EXISTS positions (
	position_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	qty REAL NOT NULL,
	entry_price REAL NOT NULL,
	atr REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	open_time INTEGER NOT NULL,
	status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_open ON positions(symbol, open_time);

CREATE TABLE IF NOT EXISTS trades (
	position_id TEXT NOT NULL,
	order_id TEXT UNIQUE,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	qty REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time INTEGER NOT NULL,
	close_time INTEGER NOT NULL,
	gross_pnl REAL NOT NULL,
	fee REAL NOT NULL,
	net_pnl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close ON trades(close_time);
`
