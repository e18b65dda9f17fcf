package db

var flagSetup = `
CREATE TABLE IF NOT EXISTS Flags (
    FlagName TEXT NOT NULL PRIMARY KEY,
    FlagValue INTEGER NOT NULL
);
INSERT INTO Flags (FlagName, FlagValue) VALUES ('CurrentVersion', 0);
`

var version1 = `
CREATE TABLE IF NOT EXISTS Assertions (
    Id TEXT NOT NULL PRIMARY KEY,
    Claimant TEXT NOT NULL,
    CreatedAt INTEGER NOT NULL,
    Status TEXT NOT NULL,
    Stake TEXT NOT NULL,
    Wager TEXT NOT NULL,
    Challenger TEXT NOT NULL,
    Withdrawn INTEGER NOT NULL,
    StakeReturned TEXT
);
CREATE TABLE IF NOT EXISTS Settlements (
    AssertionId TEXT NOT NULL,
    Recipient TEXT NOT NULL,
    Amount TEXT NOT NULL,
    SettledAt INTEGER NOT NULL
);
`

var schemaList = []string{version1}
