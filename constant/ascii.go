package constant

// AsciiArtLogo is the application's banner shown in the root command help.
const AsciiArtLogo = `
  ___  _____ __  __ ___  ___  _      ___   __
 | _ )/ _ \ \/ / | _ \| __|| |    /_\ \ / /
 | _ \ (_) >  <  |   /| _| | |__ / _ \ V /
 |___/\___/_/\_\ |_|_\|___||____/_/ \_\_|
`
